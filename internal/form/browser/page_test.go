package browser

import (
	"strings"
	"testing"
)

func TestScriptsEscapeArguments(t *testing.T) {
	script := setInputScript(`na"price`, `</script>1`)
	if !strings.Contains(script, `"na\"price"`) {
		t.Errorf("id not JSON-escaped:\n%s", script)
	}
	if !strings.Contains(script, `"\u003c/script\u003e1"`) {
		t.Errorf("text not JSON-escaped:\n%s", script)
	}
	for _, ev := range []string{"'input'", "'change'", "'blur'", "'keydown'", "'keyup'", "key: 'Enter'"} {
		if !strings.Contains(script, ev) {
			t.Errorf("script does not dispatch %s", ev)
		}
	}
}

func TestPressButtonScript(t *testing.T) {
	script := pressButtonScript([]string{"calculate", "update scores"})
	if !strings.Contains(script, `["calculate","update scores"]`) {
		t.Errorf("labels not embedded:\n%s", script)
	}
}

func TestSelectOptionScript(t *testing.T) {
	script := selectOptionScript("shifts", "2")
	if !strings.Contains(script, `("shifts", "2")`) {
		t.Errorf("arguments not embedded:\n%s", script)
	}
}
