package cloudinary

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDKeepsExtension(t *testing.T) {
	id := PublicID("Final Essay (v2).PDF")
	require.True(t, strings.HasPrefix(id, "Final-Essay--v2-"), id)
	require.True(t, strings.HasSuffix(id, ".pdf"), id)
	require.NotEqual(t, id, PublicID("Final Essay (v2).PDF"))
}

func TestPublicIDFallback(t *testing.T) {
	id := PublicID("???.txt")
	require.True(t, strings.HasPrefix(id, "document-"), id)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, Config{CloudName: "demo", APIKey: "k"}.Enabled())
	require.True(t, Config{CloudName: "demo", APIKey: "k", APISecret: "s"}.Enabled())
}
