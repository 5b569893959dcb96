// Package export は認証イベントのExcelエクスポートを提供する。
package export

import (
	"github.com/hitoshi/authlog/internal/model"
)

// Template はエクスポートの列テンプレートを表す。
type Template string

const (
	// TemplateFull は全列（イベントID、種別、ユーザーID、表示名、
	// アプリケーション名、タイムスタンプ、日付、時刻）を出力する。
	TemplateFull Template = "full"

	// TemplateSimple は表示名、種別、日付、時刻のみを出力する。
	TemplateSimple Template = "simple"

	// TemplateUserActivity はユーザー×日付ごとに1行、件数を集計して出力する。
	TemplateUserActivity Template = "user-activity"
)

// ParseTemplate はテンプレート指定を解釈する。
// 空文字列はTemplateFullとし、未知の値はエラーとする。
func ParseTemplate(s string) (Template, error) {
	switch Template(s) {
	case "":
		return TemplateFull, nil
	case TemplateFull, TemplateSimple, TemplateUserActivity:
		return Template(s), nil
	default:
		return "", model.NewInvalidRequestError("exportTypeはfull、simple、user-activityのいずれかを指定してください")
	}
}
