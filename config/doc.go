// Package config 提供 genflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，
// 最后运行注册的验证器。ProviderSettings 可直接转换为管线使用的 providers.Config。
package config
