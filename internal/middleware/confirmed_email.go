package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/teammate/internal/model"
)

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewRequireConfirmedEmailMiddleware はメールアドレス確認済みのユーザーのみを
// 通過させるミドルウェアを返す。
// セッションミドルウェアの後に配置すること。
// 未確認ユーザーには403と確認手順を含むエラーを返す。
// OAuthユーザーは作成時点で確認済みのため常に通過する。
func NewRequireConfirmedEmailMiddleware(userFinder UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}

			user, err := userFinder.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to find user for email confirmation check",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				// セッションはあるがユーザーが消えている（削除済み等）
				writeUnauthorized(w)
				return
			}

			if !user.IsEmailConfirmed() {
				WriteErrorResponse(w, http.StatusForbidden, model.NewEmailNotConfirmedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
