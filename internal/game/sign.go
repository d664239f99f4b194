package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

var ErrSecretRequired = errors.New("缺少回合簽名密鑰")

// Signer 以伺服器密鑰對回合參數做 HMAC-SHA256 簽名與驗證
// 簽名涵蓋 room/startAt/maxTime/maxMult/target/seed，任一欄位變動簽名即失效
type Signer struct {
	secret []byte
}

// NewSigner 建立簽名器，密鑰為空時回傳錯誤
// 呼叫端不得在密鑰缺失時退回未簽名流程
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign 回傳正規化參數的十六進位 HMAC-SHA256 簽名
func (s *Signer) Sign(p Params) (string, error) {
	payload, err := json.Marshal(p.Canonical())
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify 檢查簽名是否與參數相符
// 驗證失敗不是程式錯誤，而是提交內容不可信，由呼叫端決定如何回報
func (s *Signer) Verify(p Params, sig string) bool {
	want, err := s.Sign(p)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(sig))
}
