package backend

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceztko/CodeBinder-sub002/internal/metadata/metadatatest"
	"github.com/ceztko/CodeBinder-sub002/internal/typemap"
)

func TestCasing(t *testing.T) {
	require.Equal(t, "CoreIo", Pascal("core_io"))
	require.Equal(t, "SumInts", Pascal("SumInts"))
	require.Equal(t, "DemoUtil", Pascal("Demo.Util"))
	require.Equal(t, "sumInts", Camel("SumInts"))
	require.Equal(t, "urlPath", Camel("URLPath"))
	require.Equal(t, "open", Camel("open"))
	require.Equal(t, "", Camel(""))

	t.Run("concurrent callers", func(t *testing.T) {
		var wg sync.WaitGroup
		got := make([]string, 64)
		for i := range got {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				got[i] = Pascal(fmt.Sprintf("module_%d_native", i))
			}()
		}
		wg.Wait()
		for i, name := range got {
			require.Equal(t, fmt.Sprintf("Module%dNative", i), name)
		}
	})
}

func TestTypeNames(t *testing.T) {
	index := typemap.NewIndex(metadatatest.Demo())

	stream, ok := index.Lookup("Demo.Core.Stream")
	require.True(t, ok)
	require.Equal(t, "Core_Stream", FlatName(stream, "_"))
	require.Equal(t, "Demo_Core_Stream", CName(stream))

	helpers, ok := index.Lookup("Demo.Util.Helpers")
	require.True(t, ok)
	require.Equal(t, "Demo_Util_Helpers", CName(helpers))
	require.Equal(t, "Demo/Util", NamespacePath("Demo.Util"))
}
