package summary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "batch_size = 2\n")
	require.NoError(t, err)
	require.Len(t, w.RunID, 36)
	require.NoError(t, w.AddScalar("Train/Loss", 2.5, 0))
	require.NoError(t, w.AddScalar("Train/Loss", 1.5, 100))
	require.NoError(t, w.AddScalar("Evaluation/Test Precision", 0.75, 999))
	require.NoError(t, w.AddText("graph", "conv1 ...", 0))
	require.NoError(t, w.Close())

	r, err := OpenReader(Path(dir))
	require.NoError(t, err)
	defer r.Close()
	ctx := t.Context()

	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, w.RunID, runs[0].ID)
	require.Equal(t, "batch_size = 2\n", runs[0].Config)

	tags, err := r.Tags(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Evaluation/Test Precision", "Train/Loss"}, tags)

	loss, err := r.Scalars(ctx, "Train/Loss")
	require.NoError(t, err)
	require.Len(t, loss, 2)
	require.Equal(t, int64(100), loss[1].Step)
	require.InDelta(t, 1.5, loss[1].Value, 1e-9)

	texts, err := r.Texts(ctx, "graph")
	require.NoError(t, err)
	require.Len(t, texts, 1)
}

func TestSecondRun(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		w, err := NewWriter(dir, "")
		require.NoError(t, err)
		require.NoError(t, w.AddScalar("Train/Loss", float64(i), 0))
		require.NoError(t, w.Close())
	}
	r, err := OpenReader(Path(dir))
	require.NoError(t, err)
	defer r.Close()
	runs, err := r.Runs(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.NotEqual(t, runs[0].ID, runs[1].ID)
}

func TestOpenReaderMissing(t *testing.T) {
	_, err := OpenReader(Path(t.TempDir()))
	require.Error(t, err)
}
