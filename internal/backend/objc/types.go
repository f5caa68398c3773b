package objc

import (
	"fmt"
	"path"
	"strings"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
	"github.com/ceztko/CodeBinder-sub002/internal/visibility"
	"github.com/ceztko/CodeBinder-sub002/internal/writer"
)

func headerDir(td *metadata.TypeDescriptor) string {
	if visibility.OfType(td) == visibility.Public {
		return PublicDir
	}
	return InternalDir
}

func relative(fromDir, dir, name string) string {
	if fromDir == dir {
		return name
	}
	return path.Join("..", dir, name)
}

func (n naming) header(td *metadata.TypeDescriptor) string { return n.class(td) + ".h" }

func (n naming) internalHeader(td *metadata.TypeDescriptor) string {
	return n.class(td) + "+Internal.h"
}

// writeReferences imports included and enum/block types and forward declares
// the rest.
func writeReferences(w *writer.Writer, env *backend.Env, n naming, fromDir string, lists visibility.Lists) {
	var classes, protocols []string
	for i, ref := range append(lists.Includes, lists.Forwards...) {
		td, ok := env.Tree.Lookup(ref)
		if !ok {
			continue
		}
		switch {
		case i < len(lists.Includes), td.Kind == metadata.KindEnum, td.Kind == metadata.KindDelegate:
			w.WriteLnf(`#import "%s"`, relative(fromDir, headerDir(td), n.header(td)))
		case td.Kind == metadata.KindInterface:
			protocols = append(protocols, n.class(td))
		default:
			classes = append(classes, n.class(td))
		}
	}
	if len(classes)+len(protocols) > 0 {
		w.WriteLn()
	}
	for _, c := range classes {
		w.WriteLnf("@class %s;", c)
	}
	for _, p := range protocols {
		w.WriteLnf("@protocol %s;", p)
	}
}

func renderType(env *backend.Env, n naming, td *metadata.TypeDescriptor) ([]conversion.Artifact, error) {
	public := visibility.OfType(td) == visibility.Public
	variant := visibility.VariantPublic
	if !public {
		variant = visibility.VariantInternalOnly
	}
	lists, err := env.Visibility.Partition(td, variant)
	if err != nil {
		return nil, err
	}

	dir := headerDir(td)
	name := n.class(td)
	super, protocols := bases(env, n, lists)

	w := writer.New()
	w.WriteLn("#import <Foundation/Foundation.h>")
	writeReferences(w, env, n, dir, lists)
	w.WriteLn()
	switch td.Kind {
	case metadata.KindEnum:
		if err := writeEnum(w, env, n, td); err != nil {
			return nil, err
		}
	case metadata.KindDelegate:
		if err := writeBlock(w, env, n, td); err != nil {
			return nil, err
		}
	case metadata.KindInterface:
		w.WriteLnf("@protocol %s <%s>", name, strings.Join(append([]string{"NSObject"}, protocols...), ", "))
		w.WriteLn("@end")
	default:
		writeInterface(w, name, super, protocols, !public)
	}

	artifacts := []conversion.Artifact{backend.Artifact(dir, n.header(td), "//", w.String())}
	if !isWrapper(td) {
		return artifacts, nil
	}

	implImport := relative(SourceDir, dir, n.header(td))
	if public {
		ext, err := renderExtension(env, n, td, super == "")
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, ext)
		implImport = relative(SourceDir, InternalDir, n.internalHeader(td))
	}

	impl := writer.New()
	impl.WriteLnf(`#import "%s"`, implImport)
	impl.WriteLn()
	impl.WriteLn("@implementation " + name)
	if super == "" {
		impl.WriteLn()
		impl.WriteLn("- (instancetype)initWithHandle:(void*)handle")
		impl.Block("{", "}", func() {
			impl.WriteLn("if ((self = [super init]))")
			impl.BlockStart()
			impl.WriteLn("_handle = handle;")
			impl.BlockEnd()
			impl.WriteLn("return self;")
		})
		impl.WriteLn()
	}
	impl.WriteLn("@end")
	artifacts = append(artifacts, backend.Artifact(SourceDir, name+".m", "//", impl.String()))
	return artifacts, nil
}

// bases picks the wrapper superclass and the adopted protocols.
func bases(env *backend.Env, n naming, lists visibility.Lists) (super string, protocols []string) {
	for _, ref := range lists.Includes {
		td, ok := env.Tree.Lookup(ref)
		if !ok {
			continue
		}
		if td.Kind == metadata.KindInterface {
			protocols = append(protocols, n.class(td))
		} else if super == "" && isWrapper(td) {
			super = n.class(td)
		}
	}
	return super, protocols
}

func writeInterface(w *writer.Writer, name, super string, protocols []string, withInit bool) {
	decl := "@interface " + name + " : "
	if super == "" {
		decl += "NSObject"
	} else {
		decl += super
	}
	if len(protocols) > 0 {
		decl += " <" + strings.Join(protocols, ", ") + ">"
	}
	w.WriteLn(decl)
	if super == "" {
		w.WriteLn("@property (nonatomic, readonly) void* handle;")
		if withInit {
			w.WriteLn("- (instancetype)initWithHandle:(void*)handle;")
		}
	}
	w.WriteLn("@end")
}

// renderExtension declares what only the binding itself may use on a public
// wrapper: internal references and the handle initializer.
func renderExtension(env *backend.Env, n naming, td *metadata.TypeDescriptor, root bool) (conversion.Artifact, error) {
	lists, err := env.Visibility.Partition(td, visibility.VariantInternalOnly)
	if err != nil {
		return conversion.Artifact{}, err
	}
	w := writer.New()
	w.WriteLnf(`#import "%s"`, relative(InternalDir, PublicDir, n.header(td)))
	writeReferences(w, env, n, InternalDir, lists)
	w.WriteLn()
	w.WriteLnf("@interface %s ()", n.class(td))
	if root {
		w.WriteLn("- (instancetype)initWithHandle:(void*)handle;")
	}
	w.WriteLn("@end")
	return backend.Artifact(InternalDir, n.internalHeader(td), "//", w.String()), nil
}

func writeEnum(w *writer.Writer, env *backend.Env, n naming, td *metadata.TypeDescriptor) error {
	result, err := env.Enum(td)
	if err != nil {
		return err
	}
	underlying, ok := backend.NativeTable.Primitives[result.Underlying]
	if !ok {
		return fmt.Errorf("%s: enum underlying type %s has no C spelling", td.QualifiedName(), result.Underlying)
	}
	name := n.class(td)
	macro := "NS_ENUM"
	if result.Flags {
		macro = "NS_OPTIONS"
	}
	w.Block(fmt.Sprintf("typedef %s(%s, %s) {", macro, underlying, name), "};", func() {
		for _, m := range result.Members {
			w.WriteLnf("%s%s = %s,", name, m.Name, backend.CLiteral(m.Value, result.Underlying))
		}
		for _, alias := range result.Aliases {
			w.WriteLnf("%s%s = %s%s,", name, alias.Name, name, alias.Target)
		}
	})
	return nil
}

func writeBlock(w *writer.Writer, env *backend.Env, n naming, td *metadata.TypeDescriptor) error {
	params := make([]string, 0, len(td.Params))
	for _, param := range td.Params {
		markers, err := conversion.ResolveMarkers(td.QualifiedName()+"."+param.Name, param.Attributes)
		if err != nil {
			return err
		}
		usage := typemap.Value
		if param.ByRef {
			usage = typemap.ByRef
		}
		token, err := env.Bridge.Map(param.Type, usage, markers.Binder)
		if err != nil {
			return fmt.Errorf("%s: parameter %s: %w", td.QualifiedName(), param.Name, err)
		}
		params = append(params, n.spelling(token)+" "+param.Name)
	}
	ret, err := env.Bridge.Map(td.Returns, typemap.Return, "")
	if err != nil {
		return fmt.Errorf("%s: result: %w", td.QualifiedName(), err)
	}
	list := strings.Join(params, ", ")
	if list == "" {
		list = "void"
	}
	w.WriteLnf("typedef %s (^%s)(%s);", n.spelling(ret), n.class(td), list)
	return nil
}

func renderUmbrellas(env *backend.Env, n naming) []conversion.Artifact {
	var types []*metadata.TypeDescriptor
	for _, ctx := range env.Tree.Types() {
		types = append(types, ctx.Type)
	}
	lib := env.Options.Library

	public := writer.New()
	public.WriteLn("#import <Foundation/Foundation.h>")
	public.WriteLn()
	for _, td := range env.Visibility.Filter(types, visibility.VariantPublic) {
		public.WriteLnf(`#import "%s"`, n.header(td))
	}

	internal := writer.New()
	internal.WriteLnf(`#import "%s"`, relative(InternalDir, PublicDir, lib+".h"))
	internal.WriteLn()
	for _, td := range env.Visibility.Filter(types, visibility.VariantPublic) {
		if isWrapper(td) {
			internal.WriteLnf(`#import "%s"`, n.internalHeader(td))
		}
	}
	for _, td := range env.Visibility.Filter(types, visibility.VariantInternal) {
		internal.WriteLnf(`#import "%s"`, n.header(td))
	}
	for _, module := range env.Tree.Modules {
		internal.WriteLnf(`#import "%s"`, relative(InternalDir, SourceDir, n.module(module.Name)+".h"))
	}

	return []conversion.Artifact{
		backend.Artifact(PublicDir, lib+".h", "//", public.String()),
		backend.Artifact(InternalDir, lib+"InternalOnly.h", "//", internal.String()),
		backend.Artifact(SourceDir, runtimeHeader, "//", runtimeSource),
	}
}
