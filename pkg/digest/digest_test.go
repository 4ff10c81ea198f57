package digest

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		exp      string
	}{
		{
			name:     "Empty",
			contents: "",
			exp:      "WERC8GMRZGE196QVYK49JVXS4GKTWGF4CJDS6K54JPCHPY2JQ1AG",
		},
		{
			name:     "Short",
			contents: "hi",
			exp:      "HX1M6HK4HXNSDQW9VPMG3H8QDC8ADP1SC7EKR6P8HDCV5Q1JFAJ0",
		},
		{
			name:     "Text",
			contents: "hello world\n",
			exp:      "N5490KSF1X3SQ3W1JXMMPC0R9C6JXME1SMN1XG7VGQ99K8CJMH3G",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			path := "/src/file.txt"
			assert.NoError(t, afero.WriteFile(fs, path, []byte(test.contents), 0644))

			actual, err := File(fs, path)
			assert.NoError(t, err)
			assert.Equal(t, test.exp, actual)

			// 32 hash bytes always encode to 52 characters without padding.
			assert.Len(t, actual, 52)
		})
	}
}

func TestFileMissing(t *testing.T) {
	t.Parallel()

	_, err := File(afero.NewMemMapFs(), "/does/not/exist")
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, Equal(
		"HX1M6HK4HXNSDQW9VPMG3H8QDC8ADP1SC7EKR6P8HDCV5Q1JFAJ0",
		"hx1m6hk4hxnsdqw9vpmg3h8qdc8adp1sc7ekr6p8hdcv5q1jfaj0"))
	assert.False(t, Equal(
		"HX1M6HK4HXNSDQW9VPMG3H8QDC8ADP1SC7EKR6P8HDCV5Q1JFAJ0",
		"WERC8GMRZGE196QVYK49JVXS4GKTWGF4CJDS6K54JPCHPY2JQ1AG"))
}
