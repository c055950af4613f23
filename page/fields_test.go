package page

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessages(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"\n \n\t\n", []string{}},
		{"Hi\n\nThere", []string{"Hi", "There"}},
		{"  padded  \r\nwindows\r\n", []string{"padded", "windows"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMessages(tt.in), "input %q", tt.in)
	}
}

func TestParseMessagesCap(t *testing.T) {
	var lines []string
	for i := 0; i < MaxMessages+5; i++ {
		lines = append(lines, fmt.Sprintf("m%d", i))
	}
	got := ParseMessages(strings.Join(lines, "\n"))
	assert.Len(t, got, MaxMessages)
	assert.Equal(t, "m0", got[0])
	assert.Equal(t, fmt.Sprintf("m%d", MaxMessages-1), got[MaxMessages-1])
}

func TestResolveTemplate(t *testing.T) {
	for _, tpl := range Templates() {
		assert.Equal(t, tpl, ResolveTemplate(tpl))
		assert.Equal(t, tpl, ResolveTemplate(" "+tpl+" "))
	}
	assert.Equal(t, DefaultTemplate, ResolveTemplate(""))
	assert.Equal(t, DefaultTemplate, ResolveTemplate("Birthday.HTML"))
	assert.Equal(t, DefaultTemplate, ResolveTemplate("base.html"))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "🎉 Happy Birthday", DefaultTitle(TemplateBirthday))
	assert.Equal(t, "💖 Happy Anniversary", DefaultTitle(TemplateAnniversary))
	assert.Equal(t, "🎊 Congratulations", DefaultTitle(TemplateCongratulations))
	assert.Equal(t, GenericTitle, DefaultTitle(TemplateCustom))
	assert.Equal(t, GenericTitle, DefaultTitle("unknown.html"))
}

func TestErrorMessage(t *testing.T) {
	err := uploadError(fixedID, "g3", fmt.Errorf("quota"))
	assert.Equal(t, "UPLOAD_FAILED "+fixedID+" slot=g3: store asset: quota", err.Error())
	assert.Equal(t, KindUpload, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}
