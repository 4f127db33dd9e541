package i18n

import (
	"embed"
	"encoding/json"
	"path"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator 按 Accept-Language 选择语言, 缺失的条目回退到默认语言
type Translator struct {
	bundle *goi18n.Bundle
}

// New 加载内置的语言文件
func New(defaultLang string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.MustParse(defaultLang))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := path.Join("locales", e.Name())
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			return nil, err
		}
	}
	return &Translator{bundle: bundle}, nil
}

var (
	defaultOnce sync.Once
	defaultT    *Translator
)

// Default 英文为默认语言的共享实例
func Default() *Translator {
	defaultOnce.Do(func() {
		t, err := New("en")
		if err != nil {
			panic(err)
		}
		defaultT = t
	})
	return defaultT
}

// T 获取翻译文本, 找不到时返回 key
func (t *Translator) T(acceptLanguage, key string, data map[string]any) string {
	localizer := goi18n.NewLocalizer(t.bundle, acceptLanguage)
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}

func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}
