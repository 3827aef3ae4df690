// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 dashscope 提供阿里云 DashScope（通义千问 Qwen）compatible-mode 端点的
后端策略，嵌入 openaicompat.Strategy 复用传输与解析逻辑。

# 定制行为

  - 匹配规则: 显式名称 "dashscope" / "qwen"，或主机为 dashscope(-intl).aliyuncs.com
  - Header: X-DashScope-UserAgent、X-DashScope-AuthType（配置了 AuthType 时）、
    X-DashScope-CacheControl: enable（开启缓存控制时）
  - 请求 metadata: sessionId（配置的会话 ID）与 promptId（请求 ID）
  - 开启缓存控制时，system 消息与最后一条消息的最后一个文本部分标记
    cache_control{type: ephemeral}，字符串内容转换为数组形式
*/
package dashscope
