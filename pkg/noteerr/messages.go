package noteerr

// Localized user-facing messages. Internal error details never reach
// clients; the HTTP layer serves these instead, keyed by kind and the
// request's preferred language.

// Lang is a supported response language.
type Lang string

const (
	LangKorean  Lang = "ko"
	LangEnglish Lang = "en"
)

var messages = map[Kind]map[Lang]string{
	KindInvalidInput: {
		LangEnglish: "Invalid request.",
		LangKorean:  "잘못된 요청입니다.",
	},
	KindNotFound: {
		LangEnglish: "Resource not found.",
		LangKorean:  "리소스를 찾을 수 없습니다.",
	},
	KindPermissionDenied: {
		LangEnglish: "Permission denied.",
		LangKorean:  "접근 권한이 없습니다.",
	},
	KindProviderFailure: {
		LangEnglish: "AI provider request failed.",
		LangKorean:  "AI 제공자 요청이 실패했습니다.",
	},
	KindEmbeddingFailure: {
		LangEnglish: "Embedding generation failed.",
		LangKorean:  "임베딩 생성에 실패했습니다.",
	},
	KindRouterFailure: {
		LangEnglish: "No AI provider is available for this request.",
		LangKorean:  "요청을 처리할 수 있는 AI 제공자가 없습니다.",
	},
	KindConflictBusy: {
		LangEnglish: "Another job is already running.",
		LangKorean:  "다른 작업이 이미 실행 중입니다.",
	},
	KindUnauthorized: {
		LangEnglish: "Authentication required.",
		LangKorean:  "인증이 필요합니다.",
	},
	KindInternal: {
		LangEnglish: "An internal error occurred.",
		LangKorean:  "내부 오류가 발생했습니다.",
	},
}

// LocalizedMessage returns the user-facing message for a kind. Unknown
// kinds fall back to the internal message; unknown languages fall back
// to English.
func LocalizedMessage(kind Kind, lang Lang) string {
	byLang, ok := messages[kind]
	if !ok {
		byLang = messages[KindInternal]
	}
	if msg, ok := byLang[lang]; ok {
		return msg
	}
	return byLang[LangEnglish]
}
