package translation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBatches(t *testing.T) {
	tests := []struct {
		name        string
		texts       []string
		maxSegments int
		maxChars    int
		want        [][2]int
	}{
		{
			name:        "empty",
			texts:       nil,
			maxSegments: 3,
			want:        [][2]int{},
		},
		{
			name:        "segment ceiling",
			texts:       []string{"a", "b", "c", "d", "e"},
			maxSegments: 2,
			want:        [][2]int{{0, 2}, {2, 4}, {4, 5}},
		},
		{
			name:        "character ceiling",
			texts:       []string{"aaaa", "bbbb", "cc", "dddddd"},
			maxSegments: 10,
			maxChars:    8,
			want:        [][2]int{{0, 2}, {2, 4}},
		},
		{
			name:        "oversized text goes alone",
			texts:       []string{"ab", strings.Repeat("x", 20), "cd"},
			maxSegments: 10,
			maxChars:    5,
			want:        [][2]int{{0, 1}, {1, 2}, {2, 3}},
		},
		{
			name:        "characters counted as runes",
			texts:       []string{"帮助", "文件", "设置"},
			maxSegments: 10,
			maxChars:    4,
			want:        [][2]int{{0, 2}, {2, 3}},
		},
		{
			name:        "no character ceiling",
			texts:       []string{strings.Repeat("x", 1000), "y"},
			maxSegments: 5,
			maxChars:    0,
			want:        [][2]int{{0, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := CreateBatches(tt.texts, tt.maxSegments, tt.maxChars)
			require.NoError(t, err)

			got := make([][2]int, 0, len(batches))
			for i, b := range batches {
				assert.Equal(t, i, b.Index)
				got = append(got, [2]int{b.Start, b.End})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateBatchesCoversEveryTextOnce(t *testing.T) {
	var texts []string
	for i := 0; i < 97; i++ {
		texts = append(texts, strings.Repeat("w", i%13+1))
	}

	batches, err := CreateBatches(texts, 7, 30)
	require.NoError(t, err)

	next := 0
	for _, b := range batches {
		assert.Equal(t, next, b.Start)
		assert.LessOrEqual(t, b.Len(), 7)
		if b.Len() > 1 {
			assert.LessOrEqual(t, b.Chars, 30)
		}
		next = b.End
	}
	assert.Equal(t, len(texts), next)
}

func TestCreateBatchesInvalid(t *testing.T) {
	_, err := CreateBatches([]string{"a"}, 0, 10)
	assert.Error(t, err)
}
