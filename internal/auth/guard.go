package auth

import "github.com/hitoshi/platfeed/internal/model"

// AuthorizePlatform はClaimのプラットフォームと対象リソースのプラットフォームが一致するかを検査する。
// 一致しない場合はPLATFORM_MISMATCHエラーを返す。
func AuthorizePlatform(claimPlatform, resourcePlatform model.Platform) error {
	if claimPlatform == "" || claimPlatform != resourcePlatform {
		return model.NewPlatformMismatchError()
	}
	return nil
}
