package utils

import (
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

var bundle *i18n.Bundle

func InitI18NBundle() {
	bundle = i18n.NewBundle(language.Korean)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	bundle.MustLoadMessageFile(path.Join(viper.GetString("i18n.dir"), "ko.yaml"))
	bundle.MustLoadMessageFile(path.Join(viper.GetString("i18n.dir"), "en.yaml"))
}

// NewLocalizer returns nil until the bundle is loaded
func NewLocalizer(lang string) *i18n.Localizer {
	if bundle == nil {
		return nil
	}
	return i18n.NewLocalizer(bundle, lang)
}

// Translate looks a message up, returning fallback when it is missing
func Translate(loc *i18n.Localizer, id, fallback string) string {
	if loc == nil {
		return fallback
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

// Translator binds a localizer for repeated lookups
func Translator(loc *i18n.Localizer) func(id, fallback string) string {
	return func(id, fallback string) string {
		return Translate(loc, id, fallback)
	}
}
