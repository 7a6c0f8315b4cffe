package cacus

import (
	"fmt"
	"strings"
	"unsafe"
)

//vulkan-go passes strings straight to C, they must carry their own terminator
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func trimNull(s string) string {
	return strings.TrimRight(s, "\x00")
}

// missingNames returns the entries of want not present in have.
func missingNames(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[trimNull(h)] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := set[trimNull(w)]; !ok {
			missing = append(missing, trimNull(w))
		}
	}
	return missing
}

func containsName(list []string, name string) bool {
	for _, s := range list {
		if trimNull(s) == trimNull(name) {
			return true
		}
	}
	return false
}

// bytesOf views a slice of fixed size values as raw bytes without copying.
func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

// versionString formats a packed Vulkan version as major.minor.patch.
func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
