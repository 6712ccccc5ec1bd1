package session

import (
	"sort"
	"strings"
	"time"
)

// offlinePrefix はオフラインセッションIDの接頭辞。
const offlinePrefix = "offline_"

// Session はインストール済みショップの認証状態を表す。
// OAuthコールバックで生成され、Admin API呼び出しのたびに読み込まれる。
type Session struct {
	// ID はセッションの一意識別子。オフラインセッションでは "offline_<shop>"。
	ID string
	// Shop はショップのドメイン（例: example.myshopify.com）。
	Shop string
	// State はOAuth開始時に発行したstate値。
	State string
	// IsOnline はユーザー単位のオンラインセッションかどうか。
	IsOnline bool
	// Scope は付与されたアクセススコープ（カンマ区切り）。
	Scope string
	// Expires はアクセストークンの有効期限。オフライントークンは無期限のためnil。
	Expires *time.Time
	// AccessToken はAdmin API呼び出しに使うアクセストークン。
	AccessToken string
	// UserID はオンラインセッションのスタッフユーザーID。
	UserID int64
}

// OfflineID はショップのオフラインセッションIDを返す。
func OfflineID(shop string) string {
	return offlinePrefix + shop
}

// IsExpired はセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return s.Expires != nil && !now.Before(*s.Expires)
}

// IsActive はセッションがAdmin API呼び出しに使える状態かどうかを返す。
// アクセストークンがあり、期限切れでなく、要求スコープを満たしている必要がある。
func (s *Session) IsActive(required Scopes, now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	if s.IsExpired(now) {
		return false
	}
	return ParseScopes(s.Scope).Covers(required)
}

// Scopes はアクセススコープの集合。
type Scopes map[string]struct{}

// ParseScopes はカンマ区切りのスコープ文字列を解析する。
// write_xxx は read_xxx を暗黙に含む。
func ParseScopes(raw string) Scopes {
	return NewScopes(strings.Split(raw, ",")...)
}

// NewScopes はスコープの一覧から集合を生成する。
func NewScopes(scopes ...string) Scopes {
	set := make(Scopes, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		set[s] = struct{}{}
		if implied, ok := impliedScope(s); ok {
			set[implied] = struct{}{}
		}
	}
	return set
}

// impliedScope は書き込みスコープが暗黙に含む読み取りスコープを返す。
func impliedScope(scope string) (string, bool) {
	for _, prefix := range []string{"unauthenticated_", ""} {
		if rest, ok := strings.CutPrefix(scope, prefix+"write_"); ok {
			return prefix + "read_" + rest, true
		}
	}
	return "", false
}

// Covers は集合が required のすべてのスコープを含むかどうかを返す。
func (s Scopes) Covers(required Scopes) bool {
	for scope := range required {
		if _, ok := s[scope]; !ok {
			return false
		}
	}
	return true
}

// String はスコープをソート済みのカンマ区切り文字列で返す。
func (s Scopes) String() string {
	list := make([]string, 0, len(s))
	for scope := range s {
		list = append(list, scope)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}
