package binding

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// The shipped table in configs/ is what deployments start from; it must
// publish the same FOM surface the tests are written against.
func TestShippedBindings_MatchTestdata(t *testing.T) {
	shipped, err := LoadFile(filepath.Join("..", "configs", "bindings.yaml"))
	require.NoError(t, err)
	fixture, err := LoadFile(filepath.Join("testdata", "bindings.yaml"))
	require.NoError(t, err)

	if diff := cmp.Diff(fixture.Channels(), shipped.Channels()); diff != "" {
		t.Errorf("channels differ (-testdata +shipped):\n%s", diff)
	}
	if diff := cmp.Diff(fixture.ObjectClasses(), shipped.ObjectClasses()); diff != "" {
		t.Errorf("object classes differ (-testdata +shipped):\n%s", diff)
	}
	if diff := cmp.Diff(fixture.InteractionClasses(), shipped.InteractionClasses()); diff != "" {
		t.Errorf("interaction classes differ (-testdata +shipped):\n%s", diff)
	}
	if diff := cmp.Diff(fixture.Instances(), shipped.Instances()); diff != "" {
		t.Errorf("instances differ (-testdata +shipped):\n%s", diff)
	}

	for _, ch := range fixture.Channels() {
		want, _ := fixture.Lookup(ch)
		got, ok := shipped.Lookup(ch)
		require.True(t, ok, ch)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("binding %q differs (-testdata +shipped):\n%s", ch, diff)
		}
	}
}
