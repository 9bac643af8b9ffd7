package chat

// Language selects the language the assistant replies in.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageTamil   Language = "ta"
	LanguageHindi   Language = "hi"
	LanguageTelugu  Language = "te"
	LanguageKannada Language = "kn"
	LanguageMarathi Language = "mr"
)

var languageNames = map[Language]string{
	LanguageEnglish: "English",
	LanguageTamil:   "Tamil",
	LanguageHindi:   "Hindi",
	LanguageTelugu:  "Telugu",
	LanguageKannada: "Kannada",
	LanguageMarathi: "Marathi",
}

// ParseLanguage maps a request tag onto a supported language, falling back to
// English for anything unknown.
func ParseLanguage(tag string) Language {
	lang := Language(tag)
	if _, ok := languageNames[lang]; ok {
		return lang
	}
	return LanguageEnglish
}

// Name returns the human-readable name used in localized prompts.
func (l Language) Name() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return languageNames[LanguageEnglish]
}
