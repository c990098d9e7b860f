package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseGraphs(t *testing.T) {
	testCases := []struct {
		name    string
		list    string
		want    []graphDir
		wantErr bool
	}{
		{
			name: "single",
			list: "default=./data/graph.badger",
			want: []graphDir{{name: "default", dir: "./data/graph.badger"}},
		},
		{
			name: "several with spaces",
			list: "jkt=/srv/jkt, bdg = /srv/bdg",
			want: []graphDir{{name: "jkt", dir: "/srv/jkt"}, {name: "bdg", dir: "/srv/bdg"}},
		},
		{name: "missing dir", list: "jkt=", wantErr: true},
		{name: "missing name", list: "=/srv/jkt", wantErr: true},
		{name: "no separator", list: "jkt", wantErr: true},
		{name: "trailing comma", list: "jkt=/srv/jkt,", wantErr: true},
		{name: "duplicate name", list: "jkt=/a,jkt=/b", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseGraphs(tc.list)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunReturnsErrorAndReleasesStores(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "graph.badger")
	*graphs = "default=" + dir + ",broken"
	*restrictionsDB = ""
	t.Cleanup(func() {
		*graphs = "default=./data/graph.badger"
		*restrictionsDB = "./data/restrictions.db"
	})

	err := run(context.Background(), zap.NewNop())
	assert.ErrorContains(t, err, "invalid -graphs entry")

	*graphs = "default=" + dir + ",other=" + filepath.Join(t.TempDir(), "missing", "\x00")
	err = run(context.Background(), zap.NewNop())
	assert.Error(t, err)

	// the badger directory lock of the first graph is released on the error path
	store, err := graph.OpenBadgerStore(dir, 0, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
