package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCheckpoint(vectors int) *Checkpoint {
	cp := &Checkpoint{
		Filename: "manual.pdf",
		Chunks:   []string{"a", "b", "c"},
		Metadata: []ChunkMeta{
			{Filename: "manual.pdf", PageNumber: 1},
			{Filename: "manual.pdf", PageNumber: 1},
			{Filename: "manual.pdf", PageNumber: 2},
		},
	}
	for i := 0; i < vectors; i++ {
		cp.Vectors = append(cp.Vectors, []float32{float32(i)})
	}
	return cp
}

func TestCheckpoint_Cursor(t *testing.T) {
	assert.Equal(t, 0, sampleCheckpoint(0).Cursor())
	assert.Equal(t, 2, sampleCheckpoint(2).Cursor())
}

func TestCheckpoint_Complete(t *testing.T) {
	assert.False(t, sampleCheckpoint(2).Complete())
	assert.True(t, sampleCheckpoint(3).Complete())
}

func TestCheckpoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Checkpoint)
		wantErr bool
	}{
		{name: "valid partial", mutate: func(*Checkpoint) {}},
		{name: "missing filename", mutate: func(c *Checkpoint) { c.Filename = "" }, wantErr: true},
		{name: "metadata mismatch", mutate: func(c *Checkpoint) { c.Metadata = c.Metadata[:1] }, wantErr: true},
		{
			name:    "too many vectors",
			mutate:  func(c *Checkpoint) { c.Vectors = append(c.Vectors, []float32{1}, []float32{2}) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := sampleCheckpoint(2)
			tt.mutate(cp)
			err := cp.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckpoint_Rows(t *testing.T) {
	rows, err := sampleCheckpoint(3).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "c", rows[2].Content)
	assert.Equal(t, 2, rows[2].PageNumber)
	assert.Equal(t, "manual.pdf", rows[2].Filename)
	assert.Equal(t, []float32{2}, rows[2].Embedding)
}

func TestCheckpoint_Rows_Incomplete(t *testing.T) {
	_, err := sampleCheckpoint(1).Rows()
	assert.ErrorIs(t, err, ErrInvalidInput)
}
