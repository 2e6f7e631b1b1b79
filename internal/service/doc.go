// Package service 用户/会话核心逻辑：密码哈希、凭证校验、token 签发与撤销、
// 请求鉴权、删除账号时级联清理归属资源。HTTP 层只做绑定和错误码映射。
package service
