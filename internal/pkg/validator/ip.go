package validator

import (
	"net"
	"strings"
)

// UnknownClient 取不到合法地址时使用的客户端标识
const UnknownClient = "unknown"

// NormalizeIP 去掉端口和 IPv6 zone（fe80::1%eth0 -> fe80::1），IPv4 映射地址转回 IPv4
func NormalizeIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ip = strings.Trim(ip, "[]")
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		ip = ip[:idx]
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}

// ClientKey 限流等场景使用的客户端标识，非法地址统一归到 UnknownClient
func ClientKey(raw string) string {
	if ip := NormalizeIP(raw); ip != "" {
		return ip
	}
	return UnknownClient
}
