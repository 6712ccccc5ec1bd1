package shopify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/nao1215/shopapp/internal/session"
	"github.com/tidwall/gjson"
)

// DefaultProductCount は商品作成エンドポイントが一度に作成する商品数。
const DefaultProductCount = 5

var adjectives = []string{
	"autumn", "hidden", "bitter", "misty", "silent", "empty", "dry", "dark",
	"summer", "icy", "delicate", "quiet", "white", "cool", "spring", "winter",
	"patient", "twilight", "dawn", "crimson", "wispy", "weathered", "blue",
	"billowing", "broken", "cold", "damp", "falling", "frosty", "green", "long",
}

var nouns = []string{
	"waterfall", "river", "breeze", "moon", "rain", "wind", "sea", "morning",
	"snow", "lake", "sunset", "pine", "shadow", "leaf", "dawn", "glitter",
	"forest", "hill", "cloud", "meadow", "sun", "glade", "bird", "brook",
	"butterfly", "bush", "dew", "dust", "field", "fire", "flower",
}

// RandomTitle は "<形容詞> <名詞>" 形式のランダムな商品タイトルを返す。
func RandomTitle() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + nouns[rand.IntN(len(nouns))]
}

// CreateProducts はランダムなタイトルの商品をcount件作成する。
// 最初に失敗した時点で中断する。GraphQLのエラーはメッセージにレスポンス全体を添えて返し、
// それ以外のエラーはメッセージを変えずにそのまま返す。
func CreateProducts(ctx context.Context, api AdminAPI, sess *session.Session, count int) error {
	for i := 0; i < count; i++ {
		body, err := api.GraphQL(ctx, sess, createProductMutation, map[string]any{
			"input": map[string]any{"title": RandomTitle()},
		})
		if err != nil {
			var gqlErr *GraphQLError
			if errors.As(err, &gqlErr) {
				return errors.New(gqlErr.Detail())
			}
			return err
		}

		if userErrs := gjson.GetBytes(body, "data.productCreate.userErrors.#.message"); len(userErrs.Array()) > 0 {
			msgs := make([]string, 0, len(userErrs.Array()))
			for _, m := range userErrs.Array() {
				msgs = append(msgs, m.String())
			}
			return fmt.Errorf("商品の作成が拒否されました: %s", strings.Join(msgs, ", "))
		}
	}
	return nil
}
