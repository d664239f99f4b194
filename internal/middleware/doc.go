// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 目前只有訪客憑證的身份驗證中間件：解析 Bearer token 並把
// 使用者身分放入請求上下文，供後續的處理器使用。
package middleware
