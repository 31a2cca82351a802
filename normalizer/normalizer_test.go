package normalizer

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"collapses whitespace and newlines", "  타이레놀\n\n정   500mg \r\n", "타이레놀 정 500mg"},
		{"maps full-width brackets", "【주성분】 아스피린〔Aspirin〕", "[주성분] 아스피린(Aspirin)"},
		{"fixes O read instead of zero", "아스피린 5Omg", "아스피린 50mg"},
		{"fixes l and I read instead of one", "와파린 2lmg 또는 2Img", "와파린 21mg 또는 21mg"},
		{"fixes every misread digit of the amount", "ASPIRIN 1OOmg", "ASPIRIN 100mg"},
		{"fixes amounts before other units", "비타민D 1OOO IU, 시럽 5.O ml", "비타민D 1000 IU, 시럽 5.0 ml"},
		{"leaves letters before the number alone", "SOLO10mg", "SOLO10mg"},
		{"keeps IU after a number", "10IU", "10IU"},
		{"folds full-width ascii", "ＡＢＣ　１００ｍｇ", "ABC 100mg"},
		{"keeps letters away from units", "Omega 3", "Omega 3"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"keeps line breaks", "타이레놀\n아스피린", "타이레놀\n아스피린"},
		{"drops blank lines and edge spaces", "  타이레놀 \r\n\r\n  아스피린   1OOmg \n", "타이레놀\n아스피린 100mg"},
		{"collapses spaces inside a line", "【주성분】\t 와파린", "[주성분] 와파린"},
		{"empty", "\n \n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLines(tt.input); got != tt.expected {
				t.Errorf("NormalizeLines(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatchingKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Vitamin-D (3)", "vitamind3"},
		{"오메가·3", "오메가3"},
		{"St_Johns • Wort", "stjohnswort"},
		{"[아스피린]{100}", "아스피린100"},
		{"  와파린 ", "와파린"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := MatchingKey(tt.input); got != tt.expected {
				t.Errorf("MatchingKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractDosage(t *testing.T) {
	tests := []struct {
		input      string
		wantOK     bool
		wantAmount float64
		wantUnit   string
	}{
		{"아세트아미노펜 500mg", true, 500, "mg"},
		{"비타민D 1000 IU", true, 1000, "IU"},
		{"칼슘 0.5 g", true, 0.5, "g"},
		{"레보티록신 50µg", true, 50, "mcg"},
		{"레보티록신 75mcg", true, 75, "mcg"},
		{"시럽 5ML", true, 5, "ml"},
		{"칼슘 500밀리그램", true, 500, "mg"},
		{"엽산 400마이크로그램", true, 400, "mcg"},
		{"분말 3그램", true, 3, "g"},
		{"두 가지 1정씩", false, 0, ""},
		{"", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ExtractDosage(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ExtractDosage(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Amount != tt.wantAmount || got.Unit != tt.wantUnit {
				t.Errorf("ExtractDosage(%q) = %v %s, want %v %s", tt.input, got.Amount, got.Unit, tt.wantAmount, tt.wantUnit)
			}
		})
	}
}

func TestExtractDosageFirstMatchWins(t *testing.T) {
	got, ok := ExtractDosage("아스피린 100mg 카페인 50mg")
	if !ok {
		t.Fatal("expected a dosage")
	}
	if got.Amount != 100 {
		t.Errorf("expected first amount 100, got %v", got.Amount)
	}
}

func TestExtractCandidates(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "labeled field",
			input:    "주성분: 와파린나트륨",
			expected: []string{"와파린나트륨", "주성분: 와파린나트륨"},
		},
		{
			name:     "generic name in parentheses",
			input:    "타이레놀(아세트아미노펜) 500mg",
			expected: []string{"아세트아미노펜", "타이레놀(아세트아미노펜) 500mg"},
		},
		{
			name:     "names before dosages",
			input:    "아스피린 100mg, 카페인 50mg",
			expected: []string{"아스피린", "카페인", "아스피린 100mg", "카페인 50mg"},
		},
		{
			name:     "segments filtered by length and digits",
			input:    "12345, A, 와파린",
			expected: []string{"와파린"},
		},
		{
			name:     "one name per line",
			input:    "타이레놀\n아스피린",
			expected: []string{"타이레놀", "아스피린"},
		},
		{
			name:     "dosage names stay on their line",
			input:    "타이레놀\n아스피린 100mg",
			expected: []string{"아스피린", "타이레놀", "아스피린 100mg"},
		},
		{
			name:     "duplicates removed",
			input:    "와파린, 와파린",
			expected: []string{"와파린"},
		},
		{
			name:     "empty text",
			input:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCandidates(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ExtractCandidates(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractCandidatesDeterministic(t *testing.T) {
	text := Normalize("주성분: 이부프로펜 200mg, 나프록센(Naproxen)\n오메가3")
	first := ExtractCandidates(text)
	for i := 0; i < 10; i++ {
		if got := ExtractCandidates(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d returned %v, want %v", i, got, first)
		}
	}
}
