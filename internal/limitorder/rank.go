package limitorder

import "github.com/hitoshi/ichiba/internal/model"

// CheapestOffer は上限価格以下のオファーのうち最安の1件を返す。
// 該当がなければnilを返す。同額の場合はオファーIDが小さいものを
// 選び、結果を決定的にする。純関数でありI/Oを伴わない。
func CheapestOffer(offers []*model.Offer, ceiling float64) *model.Offer {
	var best *model.Offer
	for _, offer := range offers {
		if offer == nil || offer.Price > ceiling {
			continue
		}
		if best == nil || offer.Price < best.Price ||
			(offer.Price == best.Price && offer.ID < best.ID) {
			best = offer
		}
	}
	return best
}
