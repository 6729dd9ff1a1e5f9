package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"board":  "bpi-f3",
		"prompt": "root@bpi-f3:~#",
		"quoted": `say "hi"`,
	}

	tests := []struct {
		name    string
		tmpl    string
		want    string
		wantErr string
	}{
		{name: "single var", tmpl: "hostnamectl set-hostname {{ .board }}", want: "hostnamectl set-hostname bpi-f3"},
		{name: "several vars", tmpl: "{{ .board }}: {{ .prompt }}", want: "bpi-f3: root@bpi-f3:~#"},
		{name: "plain text", tmpl: "uname -a", want: "uname -a"},
		{name: "empty", tmpl: "", want: ""},
		{name: "quotes kept", tmpl: "echo {{ .quoted }}", want: `echo say "hi"`},
		{name: "multiline", tmpl: "cat <<EOF\n{{ .board }}\nEOF", want: "cat <<EOF\nbpi-f3\nEOF"},
		{name: "missing var", tmpl: "{{ .missing }}", wantErr: "missing"},
		{name: "parse error", tmpl: "{{ .board ", wantErr: "failed to parse template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, vars)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeVarsFiltered_EnvOverrides(t *testing.T) {
	t.Setenv("board", "visionfive2")

	merged, denied := MergeVarsFiltered(map[string]string{"board": "bpi-f3", "user": "root"}, nil)
	assert.Equal(t, "visionfive2", merged["board"])
	assert.Equal(t, "root", merged["user"])
	assert.Empty(t, denied)
}

func TestMergeVarsFiltered_DeniedKeepsBatchValue(t *testing.T) {
	t.Setenv("BMC_PASSWORD", "real-secret")
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB1")
	t.Setenv("AWS_KEY", "aws-real")

	vars := map[string]string{
		"BMC_PASSWORD": "changeme",
		"SERIAL_PORT":  "/dev/ttyUSB0",
		"AWS_KEY":      "none",
	}
	merged, denied := MergeVarsFiltered(vars, []string{"*_PASSWORD", "AWS_*"})

	assert.Equal(t, "changeme", merged["BMC_PASSWORD"])
	assert.Equal(t, "none", merged["AWS_KEY"])
	assert.Equal(t, "/dev/ttyUSB1", merged["SERIAL_PORT"])
	assert.Equal(t, []string{"AWS_KEY", "BMC_PASSWORD"}, denied)
}

func TestMergeVarsFiltered_ControlVarsNeverDenied(t *testing.T) {
	t.Setenv("HILTEST_TRACE", "1")
	t.Setenv("SOME_VAR", "real")

	merged, denied := MergeVarsFiltered(map[string]string{"HILTEST_TRACE": "0", "SOME_VAR": "base"}, []string{"*"})
	assert.Equal(t, "1", merged["HILTEST_TRACE"])
	assert.Equal(t, "base", merged["SOME_VAR"])
	assert.Equal(t, []string{"SOME_VAR"}, denied)
}

func TestMergeVarsFiltered_NothingToOverride(t *testing.T) {
	merged, denied := MergeVarsFiltered(map[string]string{"XYZZY_UNIQUE_VAR_123": "base"}, []string{"*"})
	assert.Equal(t, "base", merged["XYZZY_UNIQUE_VAR_123"])
	assert.Empty(t, denied)

	merged, denied = MergeVarsFiltered(nil, []string{"*"})
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
	assert.Empty(t, denied)
}
