package domain

type OverlayKind string

const (
	OverlayWatermark     OverlayKind = "watermark"
	OverlaySecuritySeal  OverlayKind = "security_seal"
	OverlayPenaltyBanner OverlayKind = "penalty_banner"
	OverlayVerification  OverlayKind = "verification_qr"
)

// OverlayOrder is the order overlays are stamped in, independent of how an
// OverlaySet was populated.
var OverlayOrder = []OverlayKind{
	OverlayWatermark,
	OverlaySecuritySeal,
	OverlayPenaltyBanner,
	OverlayVerification,
}

type OverlaySet struct {
	WatermarkText   *string
	SecuritySeal    bool
	PenaltyBanner   *PenaltyInfo
	VerificationURL *string
}

func (o OverlaySet) Empty() bool {
	return o.WatermarkText == nil && !o.SecuritySeal && o.PenaltyBanner == nil && o.VerificationURL == nil
}

// Kinds lists the overlays present in o, in stamping order.
func (o OverlaySet) Kinds() []OverlayKind {
	var out []OverlayKind
	for _, kind := range OverlayOrder {
		switch kind {
		case OverlayWatermark:
			if o.WatermarkText != nil {
				out = append(out, kind)
			}
		case OverlaySecuritySeal:
			if o.SecuritySeal {
				out = append(out, kind)
			}
		case OverlayPenaltyBanner:
			if o.PenaltyBanner != nil {
				out = append(out, kind)
			}
		case OverlayVerification:
			if o.VerificationURL != nil {
				out = append(out, kind)
			}
		}
	}
	return out
}
