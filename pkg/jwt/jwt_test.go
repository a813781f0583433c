package jwt

import (
	"testing"
	"time"

	"shifts-connector/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret: "test-secret-key-for-unit-testing-2026",
		Issuer:    "shifts-connector",
		TokenTTL:  15 * time.Minute,
	})
}

func TestGenerateAndParseToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("scheduler", RoleService)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.Subject != "scheduler" {
		t.Errorf("期望 Subject=scheduler，实际=%s", claims.Subject)
	}
	if claims.Role != RoleService {
		t.Errorf("期望 Role=service，实际=%s", claims.Role)
	}
	if claims.TokenType != "access" {
		t.Errorf("期望 TokenType=access，实际=%s", claims.TokenType)
	}
	if claims.Issuer != "shifts-connector" {
		t.Errorf("期望 Issuer=shifts-connector，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 14*time.Minute || ttl > 16*time.Minute {
		t.Errorf("TTL 期望约15分钟，实际=%v", ttl)
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	m := newTestManager()

	_, err := m.ParseToken("invalid.token.string")
	if err == nil {
		t.Error("期望解析无效 token 返回错误")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m1 := newTestManager()
	m2 := NewManager(&config.AuthConfig{
		JWTSecret: "different-secret-key",
		TokenTTL:  15 * time.Minute,
	})

	token, _ := m1.GenerateToken("ops", RoleAdmin)
	_, err := m2.ParseToken(token)
	if err == nil {
		t.Error("不同密钥签名的 token 不应通过验证")
	}
}

func TestParseToken_WrongIssuer(t *testing.T) {
	m1 := newTestManager()
	m2 := NewManager(&config.AuthConfig{
		JWTSecret: "test-secret-key-for-unit-testing-2026",
		Issuer:    "someone-else",
		TokenTTL:  15 * time.Minute,
	})

	token, _ := m2.GenerateToken("ops", RoleAdmin)
	if _, err := m1.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("签发方不一致应返回 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	// 创建一个 TTL 极短的 manager 来测试过期
	m := NewManager(&config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  1 * time.Millisecond,
	})

	token, _ := m.GenerateToken("ops", RoleAdmin)
	time.Sleep(1100 * time.Millisecond)

	_, err := m.ParseToken(token)
	if err == nil {
		t.Error("过期 token 不应通过验证")
	}
	if err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}
