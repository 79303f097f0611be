package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--dd", "a.example,b.example", "--id", "github.com", "--nl", "-d", "2", "-p", "5"}))

	deny, err := cmd.Flags().GetStringSlice("deny-domains")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example"}, deny)

	important, err := cmd.Flags().GetStringSlice("important-domains")
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com"}, important)

	noLog, err := cmd.Flags().GetBool("no-log")
	require.NoError(t, err)
	assert.True(t, noLog)

	depth, err := cmd.Flags().GetInt("depth")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "single dash aliases",
			args: []string{"CVE-2019-10192", "-dd", "a.example", "-id", "github.com", "-nl", "-d", "2"},
			want: []string{"CVE-2019-10192", "--dd", "a.example", "--id", "github.com", "--nl", "-d", "2"},
		},
		{
			name: "space separated domains",
			args: []string{"FOO", "-dd", "a.example", "b.example", "--nl"},
			want: []string{"FOO", "--dd", "a.example,b.example", "--nl"},
		},
		{
			name: "domains before the identifier",
			args: []string{"--id", "github.com", "gitlab.com", "CVE-2019-10192", "-p", "5"},
			want: []string{"--id", "github.com,gitlab.com", "CVE-2019-10192", "-p", "5"},
		},
		{
			name: "long names and comma lists",
			args: []string{"--deny-domains", "a.example,b.example", "c.example", "DSA-4480-1"},
			want: []string{"--deny-domains", "a.example,b.example,c.example", "DSA-4480-1"},
		},
		{
			name: "no values",
			args: []string{"CVE-2019-10192", "--dd"},
			want: []string{"CVE-2019-10192", "--dd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(tt.args))
		})
	}
}

func TestRootCmd_SpaceSeparatedDomains(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs(normalizeArgs([]string{"FOO-2019-1", "-dd", "a.example", "b.example", "-nl"}))
	err := cmd.Execute()
	require.ErrorIs(t, err, errUnrecognized)

	deny, err := cmd.Flags().GetStringSlice("deny-domains")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example"}, deny)
}

func TestRootCmd_Execute(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "unrecognized", args: []string{"FOO-2019-1", "--nl"}, wantErr: errUnrecognized},
		{name: "no id", args: []string{"--nl"}},
		{name: "bad format", args: []string{"CVE-2019-10192", "--nl", "--format", "csv"}},
		{name: "negative depth", args: []string{"CVE-2019-10192", "--nl", "-d", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
