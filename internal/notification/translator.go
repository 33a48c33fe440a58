package notification

import (
	"fmt"

	"notifier/internal/event"
	"notifier/internal/logger"
)

// template describes how one event type renders into a notification. The
// field lists encode the display-name preference order: specific name
// field, then composed firstName+lastName, then email, then the generic
// noun.
type template struct {
	title       string
	format      string
	nameFields  []string
	composeName bool
	emailFields []string
	fallback    string
}

var templates = map[string]template{
	event.TypeUserCreated: {
		title:       "Novo Usuário Criado",
		format:      "Usuário %s criado com sucesso",
		nameFields:  []string{"userName"},
		composeName: true,
		emailFields: []string{"userEmail", "email"},
		fallback:    "novo",
	},
	event.TypeUserDisabled: {
		title:       "Usuário Desabilitado",
		format:      "Usuário %s foi desabilitado",
		nameFields:  []string{"userName"},
		composeName: true,
		emailFields: []string{"userEmail", "email"},
		fallback:    "usuário",
	},
	event.TypeTeacherCreated: {
		title:       "Novo Professor Criado",
		format:      "Professor %s cadastrado",
		nameFields:  []string{"teacherName", "userName"},
		composeName: true,
		emailFields: []string{"teacherEmail", "userEmail", "email"},
		fallback:    "professor",
	},
}

const (
	defaultTitle   = "Notificação"
	defaultMessage = "Nova notificação disponível"
)

// Translator maps a canonical event onto a human-readable title and
// message. Pure apart from the warning log on unrecognized types.
type Translator struct {
	logger logger.Logger
}

func NewTranslator(log logger.Logger) *Translator {
	return &Translator{logger: log}
}

// Translate never fails; missing fields fall through the preference chain
// down to the template's generic noun.
func (t *Translator) Translate(ev event.CanonicalEvent) (title, message string) {
	tpl, ok := templates[event.NormalizeType(ev.EventType)]
	if !ok {
		t.logger.Warnw("Unknown event type, using default title and message",
			"event_type", ev.EventType,
			"event_id", ev.EventID,
		)
		return defaultTitle, defaultMessage
	}

	return tpl.title, fmt.Sprintf(tpl.format, displayName(ev, tpl))
}

func displayName(ev event.CanonicalEvent, tpl template) string {
	for _, field := range tpl.nameFields {
		if v := ev.StringField(field); v != "" {
			return v
		}
	}

	if tpl.composeName {
		first := ev.StringField("firstName")
		last := ev.StringField("lastName")
		if first != "" && last != "" {
			return first + " " + last
		}
	}

	for _, field := range tpl.emailFields {
		if v := ev.StringField(field); v != "" {
			return v
		}
	}

	return tpl.fallback
}
