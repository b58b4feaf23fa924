package testlink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "key value pairs",
			args: []string{"testprojectname=MyProject", "buildname=1.0"},
			want: map[string]string{"testprojectname": "MyProject", "buildname": "1.0"},
		},
		{
			name: "empty value",
			args: []string{"notes="},
			want: map[string]string{"notes": ""},
		},
		{
			name: "no args",
			args: nil,
			want: map[string]string{},
		},
		{name: "missing equal sign", args: []string{"testplanname"}, wantErr: true},
		{name: "two equal signs", args: []string{"notes=a=b"}, wantErr: true},
		{name: "empty key", args: []string{"=value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReportArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewReportParamsRoutesKeys(t *testing.T) {
	p := NewReportParams(map[string]string{
		ParamTestProjectName: "MyProject",
		ParamTestPlanID:      "10",
		ParamPlatformName:    "linux",
		ParamBugID:           "BUG-1",
	})

	assert.Equal(t, "MyProject", p.ProjectName)
	assert.Equal(t, "10", p.PlanID)
	assert.Equal(t, "linux", p.PlatformName)
	assert.Equal(t, map[string]string{ParamBugID: "BUG-1"}, p.Extra)
	assert.Equal(t, "BUG-1", p.Get(ParamBugID))
	assert.Equal(t, "", p.Get(ParamUser))
}

func TestSetDefault(t *testing.T) {
	p := NewReportParams(map[string]string{ParamBuildName: "1.0"})

	p.SetDefault(ParamBuildName, "2.0")
	p.SetDefault(ParamNotes, "")
	p.SetDefault(ParamGuess, "true")

	assert.Equal(t, "1.0", p.BuildName)
	assert.Equal(t, "", p.Notes)
	assert.Equal(t, "true", p.Extra[ParamGuess])
}

func TestCloneIsDeep(t *testing.T) {
	p := NewReportParams(map[string]string{ParamUser: "alice"})
	c := p.Clone()
	c.Set(ParamUser, "bob")
	c.PlanID = "99"

	assert.Equal(t, "alice", p.Get(ParamUser))
	assert.Empty(t, p.PlanID)

	var empty ReportParams
	assert.NotNil(t, empty.Clone().Extra)
}

// Arguments win over defaults; defaults fill what is unset.
func TestFillDefaults(t *testing.T) {
	p := NewReportParams(map[string]string{ParamTestPlanName: "Nightly"})
	defaults := MapDefaults{
		"testlinktestplanname": "FromDefaults",
		"testlinkplatformname": "linux",
		"testlinkbugid":        "BUG-7",
		"platformname":         "unprefixed",
	}

	p.FillDefaults(t.Context(), defaults)

	assert.Equal(t, "Nightly", p.PlanName)
	assert.Equal(t, "linux", p.PlatformName)
	assert.Equal(t, "BUG-7", p.Get(ParamBugID))

	t.Run("empty argument counts as unset", func(t *testing.T) {
		q := NewReportParams(map[string]string{ParamNotes: ""})
		q.FillDefaults(t.Context(), MapDefaults{"testlinknotes": "from defaults"})
		assert.Equal(t, "from defaults", q.Notes)

		q.SetDefault(ParamBugID, "BUG-1")
		q.SetDefault(ParamBugID, "BUG-2")
		assert.Equal(t, "BUG-1", q.Get(ParamBugID))
	})

	t.Run("nil defaults", func(t *testing.T) {
		q := NewReportParams(nil)
		q.FillDefaults(t.Context(), nil)
		assert.Empty(t, q.PlatformName)
	})
}
