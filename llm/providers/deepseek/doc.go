// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 deepseek 提供 DeepSeek 后端的策略实现。DeepSeek 使用 OpenAI 兼容的
API 格式，因此本包通过嵌入 openaicompat.Strategy 复用 header 构建、
HTTP 传输与 SSE 解析，仅定制差异部分。

# 定制行为

  - 匹配规则: 显式名称 "deepseek"，或 BaseURL 主机为 deepseek.com 及其子域
  - RequestHook: 将数组形式的消息内容展平为字符串（文本部分以换行连接）
  - 非文本内容部分返回 ConversionError
  - 输入消息中的 reasoning_content 被清除
*/
package deepseek
