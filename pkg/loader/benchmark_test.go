package loader_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vanderheijden86/brisk/pkg/loader"
)

func syntheticDesktopEntry(locales int) string {
	var b strings.Builder
	b.WriteString("# generated\n[Desktop Entry]\nType=Application\nName=Benchmark App\n")
	for i := 0; i < locales; i++ {
		fmt.Fprintf(&b, "Name[l%d]=Localized %d\nComment[l%d]=Comment %d\n", i, i, i, i)
	}
	b.WriteString("Exec=bench %U\nCategories=Utility;Development;\nKeywords=one;two;three\\;four;\n")
	b.WriteString("\n[Desktop Action new]\nName=New\nExec=bench --new\n")
	return b.String()
}

func BenchmarkParseDesktopEntry(b *testing.B) {
	for _, n := range []int{0, 10, 100} {
		content := syntheticDesktopEntry(n)
		b.Run(fmt.Sprintf("locales=%d", n), func(b *testing.B) {
			opts := loader.ParseOptions{Locale: "de_DE.UTF-8"}
			b.SetBytes(int64(len(content)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := loader.ParseDesktopEntry(strings.NewReader(content), opts); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkParseManifest(b *testing.B) {
	data := []byte(`{"displayName":"Bench","description":"d","command":"bench","args":["-a","-b"],"categories":["System"],"tags":["x","y"]}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := loader.ParseManifest("bench.json", data); err != nil {
			b.Fatal(err)
		}
	}
}
