package backend_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/cgo"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/jni"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/napi"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/objc"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata/metadatatest"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

var tables = []*typemap.Table{
	backend.NativeTable,
	jni.Table,
	jni.JavaTable,
	napi.Table,
	napi.TSTable,
	objc.Table,
	cgo.Table,
}

func TestTablesMapEveryPrimitive(t *testing.T) {
	for _, table := range tables {
		t.Run(table.Name, func(t *testing.T) {
			m := typemap.NewMapper(table, nil)
			for _, prim := range metadata.Primitives() {
				token, err := m.Map(metadata.PrimitiveRef(prim), typemap.Value, "")
				require.NoError(t, err, prim.String())
				require.NotEmpty(t, token.Name, prim.String())
			}
		})
	}
}

func TestTablesAreDeterministic(t *testing.T) {
	types := typemap.NewIndex(metadatatest.Demo())
	refs := []metadata.TypeRef{
		metadata.NamedRef("Demo.Access"),
		metadata.NamedRef("Demo.Point"),
		metadata.NamedRef("Demo.Widget"),
		metadata.NamedRef("Demo.OnDone"),
		metadata.ArrayOf(metadata.PrimitiveRef(metadata.Int32)),
		metadata.ArrayOf(metadata.NamedRef("Demo.Color")),
	}
	for _, prim := range metadata.Primitives() {
		refs = append(refs, metadata.PrimitiveRef(prim))
	}

	for _, table := range tables {
		t.Run(table.Name, func(t *testing.T) {
			m := typemap.NewMapper(table, types)
			for _, ref := range refs {
				for _, usage := range typemap.Usages() {
					first, firstErr := m.Map(ref, usage, "")
					second, secondErr := m.Map(ref, usage, "")
					require.Equal(t, first, second, "%s as %s", ref, usage)
					if firstErr == nil {
						require.NoError(t, secondErr)
						continue
					}
					require.EqualError(t, secondErr, firstErr.Error())
				}
			}
		})
	}
}
