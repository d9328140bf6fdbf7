package models

// DefaultLanguage is used when nothing has been chosen yet
const DefaultLanguage = "en"

// Language is a UI language the app ships strings for
type Language struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	NativeName  string `json:"nativeName"`
	Region      string `json:"region"`
}

// DisplayText renders "<native> (<english>)"
func (l Language) DisplayText() string {
	return l.NativeName + " (" + l.DisplayName + ")"
}

// LanguageOption is a Language as shown in a picker
type LanguageOption struct {
	Code        string `json:"code"`
	DisplayText string `json:"displayText"`
	Region      string `json:"region"`
	IsSelected  bool   `json:"isSelected"`
}

var supportedLanguages = []Language{
	{"en", "English", "English", "Global"},
	{"hi", "Hindi", "हिन्दी", "India"},
	{"ta", "Tamil", "தமிழ்", "Tamil Nadu"},
	{"te", "Telugu", "తెలుగు", "Andhra Pradesh, Telangana"},
	{"gu", "Gujarati", "ગુજરાતી", "Gujarat"},
	{"mr", "Marathi", "मराठी", "Maharashtra"},
	{"bn", "Bengali", "বাংলা", "West Bengal"},
	{"kn", "Kannada", "ಕನ್ನಡ", "Karnataka"},
	{"ml", "Malayalam", "മലയാളം", "Kerala"},
	{"pa", "Punjabi", "ਪੰਜਾਬੀ", "Punjab"},
	{"or", "Odia", "ଓଡ଼ିଆ", "Odisha"},
	{"as", "Assamese", "অসমীয়া", "Assam"},
}

// SupportedLanguages returns a copy of the language table in display order
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// LookupLanguage finds a language by code
func LookupLanguage(code string) (Language, bool) {
	for _, l := range supportedLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

func IsSupportedLanguage(code string) bool {
	_, ok := LookupLanguage(code)
	return ok
}

// LanguageOptions marks selected as the current choice
func LanguageOptions(selected string) []LanguageOption {
	out := make([]LanguageOption, 0, len(supportedLanguages))
	for _, l := range supportedLanguages {
		out = append(out, LanguageOption{
			Code:        l.Code,
			DisplayText: l.DisplayText(),
			Region:      l.Region,
			IsSelected:  l.Code == selected,
		})
	}
	return out
}

// SetLanguageRequest is the body of PUT /api/settings/language
type SetLanguageRequest struct {
	Code string `json:"code"`
}
