package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGazetteerExtract(t *testing.T) {
	g := NewGazetteerExtractor([]string{"ACME", "ACME Corp", "Globex", " ", "Globex"})

	cases := []struct {
		name string
		text string
		want []string
	}{
		{"longest wins", "ACME Corp violated policy.", []string{"ACME Corp"}},
		{"case insensitive", "globex and acme met", []string{"Globex", "ACME"}},
		{"word boundary", "ACMEs and Globexian", nil},
		{"punctuation", "(ACME),Globex.", []string{"ACME", "Globex"}},
		{"repeated", "ACME ACME", []string{"ACME", "ACME"}},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.ExtractEntities(context.Background(), tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGazetteerNonASCII(t *testing.T) {
	g := NewGazetteerExtractor([]string{"Société Générale", "株式会社"})
	got, err := g.ExtractEntities(context.Background(), "SOCIÉTÉ GÉNÉRALE audit; 株式会社 report")
	require.NoError(t, err)
	assert.Equal(t, []string{"Société Générale", "株式会社"}, got)
}

func TestGazetteerWithNamesLeavesReceiverUntouched(t *testing.T) {
	base := NewGazetteerExtractor([]string{"ACME"})
	scoped := base.WithNames([]string{"Initech"})

	got, err := scoped.ExtractEntities(context.Background(), "ACME Initech")
	require.NoError(t, err)
	assert.Equal(t, []string{"Initech"}, got)

	got, err = base.ExtractEntities(context.Background(), "ACME Initech")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, got)

	assert.NoError(t, base.Close())
	assert.Equal(t, BackendGazetteer, scoped.ModelID())
}

func TestGazetteerReturnsDictionarySpelling(t *testing.T) {
	g := NewGazetteerExtractor([]string{"ACME Corp"})
	got, err := g.ExtractEntities(context.Background(), "acme corp and Acme CORP")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME Corp", "ACME Corp"}, got)
}
