package objc

import (
	"fmt"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/clang"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/trampoline"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

const runtimeHeader = "CBinderObjC.h"

var patterns = trampoline.Patterns{
	Unmarshal: map[trampoline.Conversion]string{
		trampoline.Direct:   "{native} {local} = ({native}){name};",
		trampoline.String:   "cbstring {local} = [{name} UTF8String];",
		trampoline.Array:    "cbarray {local} = CBArrayFromData({name}, sizeof({elem}));",
		trampoline.Struct:   "{native} {local} = {name}.handle;",
		trampoline.Object:   "{native} {local} = {name}.handle;",
		trampoline.Delegate: "{native} {local} = (__bridge_retained void*){name};",
	},
	Invoke: "{result};",
	Remarshal: map[trampoline.Conversion]string{
		trampoline.Direct:   "return ({bridge}){result};",
		trampoline.String:   "return [NSString stringWithUTF8String:{result}];",
		trampoline.Delegate: "return (__bridge_transfer {bridge}){result};",
	},
}

// patternsFor adds the wrapper construction of handle results, which depends
// on the result type.
func (n naming) patternsFor(plan *trampoline.Plan) trampoline.Patterns {
	if plan.Result == nil || plan.Result.Bridge.Type == nil {
		return patterns
	}
	kind := plan.Result.Conversion
	if kind != trampoline.Struct && kind != trampoline.Object {
		return patterns
	}
	p := patterns
	p.Remarshal = make(map[trampoline.Conversion]string, len(patterns.Remarshal)+1)
	for k, v := range patterns.Remarshal {
		p.Remarshal[k] = v
	}
	p.Remarshal[kind] = fmt.Sprintf("return [[%s alloc] initWithHandle:{result}];", n.class(plan.Result.Bridge.Type))
	return p
}

// declaration is the class method a plan becomes, without terminator.
func (n naming) declaration(plan *trampoline.Plan) string {
	ret := "void"
	if plan.Result != nil {
		ret = n.spelling(plan.Result.Bridge)
	}
	name := backend.Camel(plan.NativeName)
	if len(plan.Params) == 0 {
		return fmt.Sprintf("+ (%s)%s", ret, name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "+ (%s)%s", ret, name)
	for i, p := range plan.Params {
		label := p.Name
		if i == 0 {
			label = ""
		} else {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:(%s)%s", label, n.spelling(p.Bridge), p.Name)
	}
	return b.String()
}

func renderModule(env *backend.Env, n naming, module *conversion.ModuleNode) ([]conversion.Artifact, error) {
	plans, err := env.Plans(module)
	if err != nil {
		return nil, err
	}
	lists, err := env.Visibility.References("module "+module.Name, visibility.VariantPublic, backend.Members(module))
	if err != nil {
		return nil, err
	}
	class := n.module(module.Name)
	lib := env.Options.Library

	header := writer.New()
	header.WriteLn("#import <Foundation/Foundation.h>")
	header.WriteLnf(`#import "%s"`, relative(SourceDir, PublicDir, lib+".h"))
	writeReferences(header, env, n, SourceDir, visibility.Lists{Forwards: lists.Forwards})
	header.WriteLn()
	header.WriteLnf("@interface %s : NSObject", class)
	for _, plan := range plans {
		header.WriteLn()
		header.Condition(plan.Condition, func() {
			if plan.HeaderVerbatim != "" {
				header.Text(plan.HeaderVerbatim)
				return
			}
			header.WriteLn(n.declaration(plan) + ";")
		})
	}
	header.WriteLn()
	header.WriteLn("@end")

	impl := writer.New()
	impl.WriteLnf(`#import "%s.h"`, class)
	impl.WriteLnf(`#import "%s"`, relative(SourceDir, InternalDir, lib+"InternalOnly.h"))
	impl.WriteLnf(`#import "%s"`, runtimeHeader)
	impl.WriteLnf(`#include "%s"`, clang.ModuleHeader(module.Name))
	for _, imp := range module.Imports() {
		impl.Condition(imp.Condition, func() {
			impl.WriteLnf(`#include "%s"`, imp.Path)
		})
	}
	impl.WriteLn()
	impl.WriteLn("@implementation " + class)
	for _, plan := range plans {
		if plan.HeaderVerbatim != "" && plan.ImplVerbatim == "" {
			continue
		}
		impl.WriteLn()
		impl.Condition(plan.Condition, func() {
			if plan.HeaderVerbatim != "" {
				impl.Text(plan.ImplVerbatim)
				return
			}
			impl.WriteLn(n.declaration(plan))
			impl.Block("{", "}", func() {
				impl.WriteLn(trampoline.Render(plan, n.patternsFor(plan))...)
			})
		})
	}
	impl.WriteLn()
	impl.WriteLn("@end")

	log.Debugf("module %s: %d class methods", module.Name, len(plans))
	return []conversion.Artifact{
		backend.Artifact(SourceDir, class+".h", "//", header.String()),
		backend.Artifact(SourceDir, class+".mm", "//", impl.String()),
	}, nil
}

const runtimeSource = `#ifndef CBINDER_OBJC_H_
#define CBINDER_OBJC_H_

#import <Foundation/Foundation.h>
#include "CBinder.h"

static inline cbarray CBArrayFromData(NSData* data, size_t elementSize)
{
    cbarray ret = { (void*)data.bytes, data.length / elementSize };
    return ret;
}

#endif // CBINDER_OBJC_H_
`
