// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package bundler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = content
	}
	return out
}

func TestBundlerEntriesAndManifest(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	w, name, err := b.AddEntry("data.csv")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", name)
	_, err = w.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)

	entries := []ManifestEntry{
		{Source: "data.parquet", Output: "data.csv", Status: "ok"},
		{Source: "bad.parquet", Status: "failed", Error: "conversion_failed"},
	}
	require.NoError(t, b.WriteManifest(entries))

	files := readArchive(t, buf.Bytes())
	assert.Equal(t, "a,b\n1,2\n", string(files["data.csv"]))

	var got []ManifestEntry
	require.NoError(t, json.Unmarshal(files[ManifestName], &got))
	assert.Equal(t, entries, got)

	// Manifest is the final entry in the archive.
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, ManifestName, zr.File[len(zr.File)-1].Name)
}

func TestBundlerDedupesNames(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	_, name1, err := b.AddEntry("out.csv")
	require.NoError(t, err)
	_, name2, err := b.AddEntry("out.csv")
	require.NoError(t, err)
	_, name3, err := b.AddEntry("out.csv")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.Equal(t, "out.csv", name1)
	assert.Equal(t, "out (1).csv", name2)
	assert.Equal(t, "out (2).csv", name3)
}

func TestBundlerClosedRejectsEntries(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, _, err := b.AddEntry("x.csv")
	assert.Error(t, err)
	assert.Error(t, b.WriteManifest(nil))
}
