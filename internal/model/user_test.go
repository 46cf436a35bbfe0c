package model

import "testing"

// TestSellerName_PrefersCompanyName は法人名が出品者名として
// 優先されることを検証する。
func TestSellerName_PrefersCompanyName(t *testing.T) {
	if got := (&User{Name: "taro", CompanyName: "ACME Inc"}).SellerName(); got != "ACME Inc" {
		t.Errorf("SellerName = %s, want ACME Inc", got)
	}
	if got := (&User{Name: "taro"}).SellerName(); got != "taro" {
		t.Errorf("SellerName = %s, want taro", got)
	}
}
