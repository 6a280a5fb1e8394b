package imaging

import (
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    RGBColor
		wantErr bool
	}{
		{"red", RGBColor{255, 0, 0}, false},
		{"LIME", RGBColor{0, 255, 0}, false},
		{" Blue ", RGBColor{0, 0, 255}, false},
		{"#fff", RGBColor{255, 255, 255}, false},
		{"#FF8040", RGBColor{255, 128, 64}, false},
		{"rgb(10,20,30)", RGBColor{10, 20, 30}, false},
		{"RGB( 10, 300, -5)", RGBColor{10, 255, 0}, false},
		{"rgb(100%, 0%, 50%)", RGBColor{255, 0, 128}, false},
		{"rgb(10, 20)", RGBColor{}, true},
		{"rgb(10%, 20, 30)", RGBColor{}, true},
		{"#ggg", RGBColor{}, true},
		{"ff0000", RGBColor{}, true},
		{"notacolor", RGBColor{}, true},
		{"", RGBColor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRGBColor_Name(t *testing.T) {
	tests := []struct {
		c    RGBColor
		want string
	}{
		{RGBColor{255, 0, 0}, "RED"},
		{RGBColor{0, 255, 0}, "LIME"},
		{RGBColor{0, 255, 255}, "CYAN"},
		{RGBColor{255, 0, 255}, "MAGENTA"},
		{RGBColor{255, 255, 255}, "WHITE"},
		{RGBColor{1, 2, 3}, "#010203"},
	}

	for _, tt := range tests {
		if got := tt.c.Name(); got != tt.want {
			t.Errorf("Name(%v): got %s, want %s", tt.c.Hex(), got, tt.want)
		}
	}
}

func TestRGBColor_IntConversion(t *testing.T) {
	c := RGBColor{10, 255, 0}
	if got := RGBColorFromInt(c.Int()); got != c {
		t.Errorf("round trip: got %v, want %v", got, c)
	}
	if got := (RGBColor{1, 2, 3}).Int(); got != 0x010203 {
		t.Errorf("Int: got %#x, want 0x010203", got)
	}
	if got := RGBColorFromInt(1684300800); got != (RGBColor{100, 100, 100}) {
		t.Errorf("high bits must be ignored, got %v", got)
	}
}

func TestRGBColor_IsGrayscale(t *testing.T) {
	if !(RGBColor{7, 7, 7}).IsGrayscale() {
		t.Error("gray reported as color")
	}
	if (RGBColor{7, 7, 8}).IsGrayscale() {
		t.Error("color reported as gray")
	}
}

func TestRGBColor_Samples(t *testing.T) {
	c := RGBColor{1, 2, 3}
	if got := c.Samples(1); len(got) != 1 || got[0] != 1 {
		t.Errorf("gray samples: got %v", got)
	}
	got := c.Samples(4)
	want := []uint32{1, 2, 3, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rgba samples: got %v, want %v", got, want)
			break
		}
	}
}

func TestRGBColor_HSL(t *testing.T) {
	tests := []struct {
		name string
		c    RGBColor
		want HSLColor
	}{
		{"red", RGBColor{255, 0, 0}, HSLColor{0, 100, 50}},
		{"lime", RGBColor{0, 255, 0}, HSLColor{120, 100, 50}},
		{"blue", RGBColor{0, 0, 255}, HSLColor{240, 100, 50}},
		{"white", RGBColor{255, 255, 255}, HSLColor{0, 0, 100}},
		{"black", RGBColor{0, 0, 0}, HSLColor{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.HSL(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFindFirstAvailableInt(t *testing.T) {
	tests := []struct {
		name    string
		used    []int
		lo, hi  int
		want    int
		wantErr bool
	}{
		{"empty", nil, 0, 10, 0, false},
		{"gap", []int{0, 1, 3}, 0, 10, 2, false},
		{"unordered", []int{2, 0, 1}, 0, 10, 3, false},
		{"offset", []int{5}, 5, 10, 6, false},
		{"full", []int{0, 1}, 0, 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindFirstAvailableInt(tt.used, tt.lo, tt.hi)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
