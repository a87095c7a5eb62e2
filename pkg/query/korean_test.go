package query

import (
	"reflect"
	"testing"
)

func TestExtractMorphemes_JosaStripping(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"서버를", "서버"},
		{"회의에서", "회의"},
		{"노트가", "노트"},
		{"프로젝트의", "프로젝트"},
		{"밥이", "밥"},
	}

	for _, tt := range tests {
		got := ExtractMorphemes(tt.token)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("ExtractMorphemes(%q) = %v, want [%s]", tt.token, got, tt.want)
		}
	}
}

func TestExtractMorphemes_VerbBaseForms(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"개선했다", "개선하다"},
		{"정리합니다", "정리하다"},
		{"연결하는", "연결하다"},
		{"추가됐다", "추가되다"},
		{"먹었다", "먹다"},
	}

	for _, tt := range tests {
		got := ExtractMorphemes(tt.token)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("ExtractMorphemes(%q) = %v, want [%s]", tt.token, got, tt.want)
		}
	}
}

func TestExtractMorphemes_ForeignWords(t *testing.T) {
	got := ExtractMorphemes("Kubernetes 클러스터를 설정")
	want := []string{"kubernetes", "클러스터", "설정"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMorphemes = %v, want %v", got, want)
	}
}

func TestExtractMorphemes_MixedScriptToken(t *testing.T) {
	got := ExtractMorphemes("MCP서버를")
	want := []string{"mcp", "서버"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMorphemes = %v, want %v", got, want)
	}
}

func TestExtractMorphemes_StopwordsDropped(t *testing.T) {
	got := ExtractMorphemes("것을 검색 수")
	want := []string{"검색"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMorphemes = %v, want %v", got, want)
	}
}

func TestExtractMorphemes_Dedup(t *testing.T) {
	got := ExtractMorphemes("검색 검색을 검색이")
	want := []string{"검색"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMorphemes = %v, want %v", got, want)
	}
}

func TestExtractMorphemes_DigitsDropped(t *testing.T) {
	got := ExtractMorphemes("2024 회고")
	want := []string{"회고"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMorphemes = %v, want %v", got, want)
	}
}
