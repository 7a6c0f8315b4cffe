package cacus

import (
	"reflect"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestSafeString(t *testing.T) {
	if got := safeString("main"); got != "main\x00" {
		t.Errorf("safeString = %q", got)
	}
	if got := safeString("main\x00"); got != "main\x00" {
		t.Errorf("safeString doubled the terminator: %q", got)
	}
}

func TestMissingNames(t *testing.T) {
	got := missingNames([]string{"a\x00", "b"}, []string{"a", "b\x00", "c"})
	if !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("missingNames = %q", got)
	}
}

func TestVersionString(t *testing.T) {
	if got := versionString(vk.MakeVersion(1, 3, 250)); got != "1.3.250" {
		t.Errorf("versionString = %q", got)
	}
}

func TestBytesOf(t *testing.T) {
	if got := bytesOf([]uint16{0x0102, 0x0304}); !reflect.DeepEqual(got, []byte{2, 1, 4, 3}) {
		t.Errorf("bytesOf = %v", got)
	}
	if bytesOf([]uint32(nil)) != nil {
		t.Error("bytesOf(nil) not nil")
	}
}
