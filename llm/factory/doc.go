// Package factory 提供内置后端策略注册表的集中式组装，
// 按固定顺序（azure → dashscope → deepseek → openrouter → 通用兜底）匹配配置，打破 providers 包与各后端子包之间的循环依赖。
package factory
