package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const membersYAML = `
members:
  - name: alice
    displayNames:
      ja: アリス
      en: Alice
    description: "Backend engineer. Writes about **Rust**."
    avatar: /avatars/alice.png
    tenure:
      start: {year: 2020, month: 1}
      end: {year: 2021, month: 6}
    tags: [rust, backend, rust]
    social:
      github: alice
    sources:
      - https://zenn.dev/alice
      - " https://alice.hatenablog.com "
  - name: bob
    tenure:
      start: {year: 2022, month: 4}
    tags: [go]
    sources: []
`

const membersTOML = `
[[members]]
name = "alice"
description = "Backend engineer."
tags = ["rust"]
sources = ["https://zenn.dev/alice"]

[members.tenure]
start = { year = 2020, month = 1 }
end = { year = 2021, month = 6 }

[members.social]
github = "alice"

[[members]]
name = "bob"
tags = ["go"]
sources = []
`

func TestParseMembers_YAML(t *testing.T) {
	members, err := ParseMembers([]byte(membersYAML), ".yaml")
	require.NoError(t, err)
	require.Len(t, members, 2)

	alice := members[0]
	assert.Equal(t, "alice", alice.Name)
	assert.Equal(t, "アリス", alice.DisplayNames["ja"])
	assert.Equal(t, []string{"rust", "backend"}, alice.Tags, "duplicate tags collapse")
	assert.Equal(t, []string{"https://zenn.dev/alice", "https://alice.hatenablog.com"}, alice.Sources)
	require.NotNil(t, alice.Tenure.End)
	assert.Equal(t, 2021, alice.Tenure.End.Year)
	assert.Equal(t, "alice", alice.Social["github"])

	bob := members[1]
	assert.True(t, bob.Tenure.Active())
	assert.Empty(t, bob.Sources)
}

func TestParseMembers_TOML(t *testing.T) {
	members, err := ParseMembers([]byte(membersTOML), ".toml")
	require.NoError(t, err)
	require.Len(t, members, 2)

	require.NotNil(t, members[0].Tenure.Start)
	assert.Equal(t, 1, members[0].Tenure.Start.Month)
	require.NotNil(t, members[0].Tenure.End)
	assert.Equal(t, 6, members[0].Tenure.End.Month)
	assert.Equal(t, "alice", members[0].Social["github"])
	assert.Nil(t, members[1].Tenure.End)
}

func TestParseMembers_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		ext     string
		wantErr string
	}{
		{
			name:    "missing name",
			doc:     "members:\n  - tags: [go]\n",
			ext:     ".yaml",
			wantErr: "name is required",
		},
		{
			name:    "duplicate name",
			doc:     "members:\n  - name: a\n  - name: a\n",
			ext:     ".yaml",
			wantErr: "duplicate name",
		},
		{
			name:    "tenure end before start",
			doc:     "members:\n  - name: a\n    tenure:\n      start: {year: 2021, month: 7}\n      end: {year: 2021, month: 6}\n",
			ext:     ".yaml",
			wantErr: "before it starts",
		},
		{
			name:    "month out of range",
			doc:     "members:\n  - name: a\n    tenure:\n      start: {year: 2021, month: 13}\n",
			ext:     ".yaml",
			wantErr: "out of range",
		},
		{
			name:    "unknown field",
			doc:     "members:\n  - name: a\n    feeds: [x]\n",
			ext:     ".yaml",
			wantErr: "decoding yaml",
		},
		{
			name:    "unsupported extension",
			doc:     "",
			ext:     ".ini",
			wantErr: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMembers([]byte(tt.doc), tt.ext)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMembers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.yml")
	require.NoError(t, os.WriteFile(path, []byte(membersYAML), 0o644))

	members, err := LoadMembers(path)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = LoadMembers(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
