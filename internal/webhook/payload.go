// Package webhook はIdPからのWebhookイベントの検証・解釈・永続化を提供する。
package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/authlog/internal/model"
)

// SessionData はsession.*イベントのペイロードを表す。
type SessionData struct {
	UserID string `json:"user_id"`
}

// UserData はuser.*イベントのペイロードを表す。
// IDは外部IdPのsubject ID。
type UserData struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}

// Event はWebhookペイロードをイベント種別でタグ付けした直和型。
// 種別に応じてSessionまたはUserのどちらか一方のみが設定される。
// 未知の種別の場合は両方nilとなり、ディスパッチのデフォルト分岐で処理される。
type Event struct {
	Type    model.EventType
	Session *SessionData
	User    *UserData
}

// envelope はペイロード外形。typeで判別し、dataの形はtypeに依存する。
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParsePayload は署名検証済みのペイロードをEventに解釈する。
// 種別ごとにdataの形を検証し、必須フィールド欠落はエラーとする。
// 未知の種別はエラーにせず、タグのみ設定したEventを返す。
func ParsePayload(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("webhook payload has no type field")
	}

	evt := &Event{Type: model.EventType(env.Type)}

	switch evt.Type {
	case model.EventSessionCreated, model.EventSessionEnded,
		model.EventSessionRevoked, model.EventSessionRemoved:
		var data SessionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to parse session data: %w", err)
		}
		if data.UserID == "" {
			return nil, fmt.Errorf("session event has no user_id")
		}
		evt.Session = &data

	case model.EventUserCreated, model.EventUserUpdated:
		var data UserData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to parse user data: %w", err)
		}
		if data.ID == "" {
			return nil, fmt.Errorf("user event has no id")
		}
		evt.User = &data

	default:
		// 未知の種別はタグのみ保持し、ディスパッチ側でno-op ACKする
	}

	return evt, nil
}
