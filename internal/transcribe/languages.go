package transcribe

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
)

// LanguageCodes maps display names to the ISO 639-1 codes the Whisper models
// accept. Keep the set in sync with what the backend actually supports;
// anything outside it is rejected before a request is made.
var LanguageCodes = map[string]string{
	"English": "en", "Chinese": "zh", "German": "de", "Spanish": "es", "Russian": "ru",
	"Korean": "ko", "French": "fr", "Japanese": "ja", "Portuguese": "pt", "Turkish": "tr",
	"Polish": "pl", "Catalan": "ca", "Dutch": "nl", "Arabic": "ar", "Swedish": "sv",
	"Italian": "it", "Indonesian": "id", "Hindi": "hi", "Finnish": "fi", "Vietnamese": "vi",
	"Hebrew": "he", "Ukrainian": "uk", "Greek": "el", "Malay": "ms", "Czech": "cs",
	"Romanian": "ro", "Danish": "da", "Hungarian": "hu", "Tamil": "ta", "Norwegian": "no",
	"Thai": "th", "Urdu": "ur", "Croatian": "hr", "Bulgarian": "bg", "Lithuanian": "lt",
	"Latin": "la", "Māori": "mi", "Malayalam": "ml", "Welsh": "cy", "Slovak": "sk",
	"Telugu": "te", "Persian": "fa", "Latvian": "lv", "Bengali": "bn", "Serbian": "sr",
	"Azerbaijani": "az", "Slovenian": "sl", "Kannada": "kn", "Estonian": "et",
	"Macedonian": "mk", "Breton": "br", "Basque": "eu", "Icelandic": "is", "Armenian": "hy",
	"Nepali": "ne", "Mongolian": "mn", "Bosnian": "bs", "Kazakh": "kk", "Albanian": "sq",
	"Swahili": "sw", "Galician": "gl", "Marathi": "mr", "Panjabi": "pa", "Sinhala": "si",
	"Khmer": "km", "Shona": "sn", "Yoruba": "yo", "Somali": "so", "Afrikaans": "af",
	"Occitan": "oc", "Georgian": "ka", "Belarusian": "be", "Tajik": "tg", "Sindhi": "sd",
	"Gujarati": "gu", "Amharic": "am", "Yiddish": "yi", "Lao": "lo", "Uzbek": "uz",
	"Faroese": "fo", "Haitian": "ht", "Pashto": "ps", "Turkmen": "tk", "Norwegian Nynorsk": "nn",
	"Maltese": "mt", "Sanskrit": "sa", "Luxembourgish": "lb", "Burmese": "my", "Tibetan": "bo",
	"Tagalog": "tl", "Malagasy": "mg", "Assamese": "as", "Tatar": "tt", "Hawaiian": "haw",
	"Lingala": "ln", "Hausa": "ha", "Bashkir": "ba", "Javanese": "jw", "Sundanese": "su",
}

var codeSet = func() map[string]bool {
	set := make(map[string]bool, len(LanguageCodes))
	for _, code := range LanguageCodes {
		set[code] = true
	}
	return set
}()

// IsSupportedLanguage reports whether code is one of the accepted ISO codes.
func IsSupportedLanguage(code string) bool {
	return codeSet[code]
}

// ValidateLanguage rejects codes outside the supported set. The extra
// language.Parse pass keeps obviously malformed tags (casing, regions) from
// slipping through as opaque strings.
func ValidateLanguage(code string) error {
	if !IsSupportedLanguage(code) {
		return fmt.Errorf("unsupported language code %q", code)
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return nil
}

// LanguageName returns the display name for a supported code, or the code
// itself when unknown.
func LanguageName(code string) string {
	for name, c := range LanguageCodes {
		if c == code {
			return name
		}
	}
	return code
}

// SortedLanguageNames returns the display names in stable order, for API
// listings and CLI output.
func SortedLanguageNames() []string {
	names := make([]string, 0, len(LanguageCodes))
	for name := range LanguageCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
