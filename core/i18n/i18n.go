// Package i18n localizes the user facing messages of FactoLearn (email subjects, practice feedback...).
// Messages are loaded from the embedded locales/*.yaml files.
package i18n

import (
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	appfs "github.com/mathhub/factolearn/fs"
)

const localesDir = "locales"

var (
	bundle     *i18n.Bundle
	bundleErr  error
	bundleOnce sync.Once

	localizers   = make(map[string]*i18n.Localizer)
	localizersMu sync.Mutex
)

// Load parses the embedded locales. It is called at start up so that a broken locale file fails
// the binary; the messages of the files that did parse are served either way.
func Load() error {
	bundleOnce.Do(func() {
		bundle, bundleErr = loadBundle(appfs.FS)
	})
	return bundleErr
}

func loadBundle(fsys fs.FS) (*i18n.Bundle, error) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(fsys, localesDir)
	if err != nil {
		return b, errors.Wrap(err, "reading locales")
	}
	var errs []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(localesDir, f.Name()))
		if err == nil {
			_, err = b.ParseMessageFileBytes(data, f.Name())
		}
		if err != nil {
			errs = append(errs, f.Name()+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return b, errors.Errorf("parsing locales: %s", strings.Join(errs, "; "))
	}
	return b, nil
}

func localizer(lang string) *i18n.Localizer {
	_ = Load()

	localizersMu.Lock()
	defer localizersMu.Unlock()
	l, ok := localizers[lang]
	if !ok {
		l = i18n.NewLocalizer(bundle, lang)
		localizers[lang] = l
	}
	return l
}

// Languages returns the tags of all loaded locales.
func Languages() []string {
	_ = Load()
	tags := bundle.LanguageTags()
	langs := make([]string, 0, len(tags))
	for _, t := range tags {
		langs = append(langs, t.String())
	}
	return langs
}

// IsSupported reports whether lang has a locale file.
func IsSupported(lang string) bool {
	for _, l := range Languages() {
		if l == lang {
			return true
		}
	}
	return false
}

// T translates messageID to lang (falling back to english), executing it with data.
// The message ID itself is returned when it is unknown.
func T(lang, messageID string, data ...map[string]interface{}) string {
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	msg, err := localizer(lang).Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}
