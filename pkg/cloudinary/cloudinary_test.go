package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestBuildPublicID(t *testing.T) {
	at := time.Unix(1700000000, 0)
	require.Equal(t, "Lab-Report-1-1700000000", BuildPublicID("Lab Report 1.pdf", at))
	require.Equal(t, "upload-1700000000", BuildPublicID("???.txt", at))
}

func TestParseAssetURL(t *testing.T) {
	publicID, resourceType, ok := ParseAssetURL("https://res.cloudinary.com/demo/image/upload/v1712/taskhub/submissions/photo-1.png")
	require.True(t, ok)
	require.Equal(t, "taskhub/submissions/photo-1", publicID)
	require.Equal(t, "image", resourceType)

	publicID, resourceType, ok = ParseAssetURL("https://res.cloudinary.com/demo/raw/upload/fl_attachment/v1712/taskhub/essay.docx")
	require.True(t, ok)
	require.Equal(t, "taskhub/essay.docx", publicID)
	require.Equal(t, "raw", resourceType)

	_, _, ok = ParseAssetURL("https://example.com/files/essay.docx")
	require.False(t, ok)
}
