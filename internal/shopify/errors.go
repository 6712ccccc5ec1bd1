package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// GraphQLError はHTTP 200で返されたGraphQLレスポンスにerrorsが含まれていたことを表す。
type GraphQLError struct {
	// Message は最初のエラーのメッセージ。
	Message string
	// Response はレスポンスボディ全体。
	Response json.RawMessage
}

// Error はエラーメッセージを返す。
func (e *GraphQLError) Error() string {
	return "GraphQLクエリがエラーを返しました: " + e.Message
}

// Detail はメッセージとインデント済みのレスポンスを連結した詳細を返す。
func (e *GraphQLError) Detail() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.Response, "", "  "); err != nil {
		return fmt.Sprintf("%s\n%s", e.Message, e.Response)
	}
	return fmt.Sprintf("%s\n%s", e.Message, buf.String())
}

// graphQLErrorFrom はレスポンスボディのerrorsメンバーを調べ、エラーがあればGraphQLErrorを返す。
func graphQLErrorFrom(body []byte) error {
	errs := gjson.GetBytes(body, "errors")
	if !errs.Exists() {
		return nil
	}
	switch {
	case errs.IsArray():
		list := errs.Array()
		if len(list) == 0 {
			return nil
		}
		msg := list[0].Get("message").String()
		if msg == "" {
			msg = list[0].Raw
		}
		return &GraphQLError{Message: msg, Response: body}
	case errs.Type == gjson.String:
		if errs.String() == "" {
			return nil
		}
		return &GraphQLError{Message: errs.String(), Response: body}
	case errs.Type == gjson.Null:
		return nil
	default:
		return &GraphQLError{Message: errs.Raw, Response: body}
	}
}
