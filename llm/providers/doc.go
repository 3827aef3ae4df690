// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 定义后端策略（Strategy）抽象与 OpenAI 兼容的 chat-completion
线上格式，是所有具体后端实现的公共基础层。各后端子包（openaicompat、azure、
dashscope、deepseek、openrouter）依赖本包完成 header 构建、错误映射与请求归一化。

# 核心类型

  - Config — 后端配置（BaseURL、APIKey、自定义 header、超时、采样覆盖）
  - SamplingParams — Provider 级别采样参数，优先级高于请求值
  - Strategy — 后端策略：BuildHeaders / BuildClient / BuildRequest
  - Transport / ChunkReader — 同步与拉取式流式调用
  - Registry — 有序的 (谓词, 构造器) 列表，首个匹配者胜出，未匹配时使用兜底策略
  - ChatCompletionRequest / ChatCompletionResponse / ChatCompletionChunk — 线上格式

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为分类后的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 解析错误响应体并保留原始负载
  - HostMatcher — 按显式名称或域名后缀匹配配置
*/
package providers
