// Package classifier turns raw envelopes into notification intents.
package classifier

import (
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/notification"
)

type rule struct {
	recipientField string
	displayField   string
	kind           notification.Kind
	title          string
	// message is a format string taking the display value.
	message string
}

type key struct {
	topic     event.Topic
	eventType string
}

var rules = map[key]rule{
	{event.TopicProject, event.TypeProjectCreated}: {
		recipientField: "owner_id",
		displayField:   "project_name",
		kind:           notification.KindProjectCreated,
		title:          "Новый проект создан",
		message:        "Проект '%s' был успешно создан",
	},
	{event.TopicProject, event.TypeMemberAdded}: {
		recipientField: "user_id",
		displayField:   "project_name",
		kind:           notification.KindMemberAdded,
		title:          "Вы добавлены в проект",
		message:        "Вы были добавлены в проект '%s'",
	},
	{event.TopicProject, event.TypeMemberRemoved}: {
		recipientField: "user_id",
		displayField:   "project_name",
		kind:           notification.KindMemberRemoved,
		title:          "Вы удалены из проекта",
		message:        "Вы были удалены из проекта '%s'",
	},
	{event.TopicTask, event.TypeTaskCreated}: {
		recipientField: "assignee_id",
		displayField:   "task_title",
		kind:           notification.KindTaskAssigned,
		title:          "Вам назначена задача",
		message:        "Задача '%s' была вам назначена",
	},
	{event.TopicTask, event.TypeTaskUpdated}: {
		recipientField: "assignee_id",
		displayField:   "task_title",
		kind:           notification.KindTaskUpdated,
		title:          "Задача обновлена",
		message:        "Задача '%s' была обновлена",
	},
	{event.TopicTask, event.TypeCommentAdded}: {
		recipientField: "task_assignee_id",
		displayField:   "task_title",
		kind:           notification.KindCommentAdded,
		title:          "Новый комментарий",
		message:        "Добавлен комментарий к задаче '%s'",
	},
}

// Classify maps an envelope to at most one intent. ok is false for
// combinations outside the table and for envelopes without a recipient.
// A recipient that is not a uuid, or a missing display field, yields an
// error wrapping event.ErrMalformed.
func Classify(env event.Envelope) (intent notification.Intent, ok bool, err error) {
	r, known := rules[key{env.Topic, env.EventType}]
	if !known {
		return notification.Intent{}, false, nil
	}

	recipient, present, err := env.Payload.ID(r.recipientField)
	if err != nil {
		return notification.Intent{}, false, err
	}
	if !present {
		return notification.Intent{}, false, nil
	}

	display, found := env.Payload.String(r.displayField)
	if !found {
		return notification.Intent{}, false, fmt.Errorf("%w: %s requires %s", event.ErrMalformed, env.EventType, r.displayField)
	}

	return notification.Intent{
		RecipientUserID: recipient,
		Kind:            r.kind,
		Title:           r.title,
		Message:         fmt.Sprintf(r.message, display),
	}, true, nil
}
