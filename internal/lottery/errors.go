package lottery

import (
	"errors"
	"fmt"
)

// User-facing notices shown by the submission surface.
const (
	NoticeAlreadyRedeemed = "你已經填過資料囉！可以繼續看文章參加活動！"
	NoticeSubmitFailed    = "看來有東西出錯囉，請再試一次。"
	NoticeInvalidPhone    = "請輸入正確的 10 位數字手機號碼"
	NoticeRequired        = "此欄位為必填"
	NoticeInvalidEmail    = "請輸入正確的 email"
)

var (
	ErrNotEligible        = errors.New("lottery: no unclaimed entry")
	ErrSubmissionInFlight = errors.New("lottery: submission already in flight")
	ErrAlreadySubmitted   = errors.New("lottery: entry already submitted")
	ErrInvalidContact     = errors.New("lottery: invalid contact record")
	ErrTornDown           = errors.New("lottery: tracker torn down")
	ErrSessionNotFound    = errors.New("lottery: session not found")
	ErrRedeemCountChanged = errors.New("lottery: redeem count changed")
)

// ValidationError names the contact field that failed input checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lottery: invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidContact }

// SubmissionError is a failed delivery to the submission endpoint.
// Status is zero for transport failures.
type SubmissionError struct {
	Status int
	Body   string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("Error: %d - %s", e.Status, e.Body)
	}
	return fmt.Sprintf("submit contact record: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Notice is the message the surface shows for err.
func Notice(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrNotEligible), errors.Is(err, ErrAlreadySubmitted):
		return NoticeAlreadyRedeemed
	default:
		return NoticeSubmitFailed
	}
}
