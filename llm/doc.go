// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义 genflow 的规范化生成模型：与后端无关的请求、响应、
流式分片、错误分类以及单次调用的请求上下文。

# 概述

上层代码只与本包的类型打交道。具体后端使用的 chat-completion 线格式
由 llm/providers 描述，由 llm/converter 负责双向转换，由 llm/pipeline
编排执行。本包本身不做任何 I/O。

# 核心类型

  - [GenerateRequest]：规范化请求，包含 Contents、SystemInstruction、
    Tools 与 GenerationConfig
  - [GenerateResponse]：单次响应，也是流式分片
  - [Content] / [Part]：按角色分组的内容与其组成部分（文本、思考、
    内联数据、文件引用、函数调用与函数结果）
  - [UsageMetadata]：Token 用量
  - [RequestContext]：单次调用的请求 ID、模型、后端、耗时与估算用量
  - [Stream]：拉取式流接口，配合 [Iterate] 与 [Collect] 使用

# 错误模型

所有失败最终都是一个 [*Error]，其 Kind 为以下之一：

  - [ErrConfiguration]：配置缺失或非法
  - [ErrAuth]：上游拒绝凭据（401/403）
  - [ErrTransport]：超时、连接重置、DNS 失败
  - [ErrUpstream]：上游返回非成功状态（含 429 与 5xx）
  - [ErrConversion]：内容或工具定义无法映射到线格式
  - [ErrStreamIntegrity]：后端负载无法解析
  - [ErrCanceled]：调用方取消

[Classify] 将任意错误归入上述类别并补全请求上下文；[StatusError]
将 HTTP 状态码映射为已分类错误。Retryable 只是给调用方的提示，
管线本身从不重试。

# 使用示例

	for chunk, err := range llm.Iterate(stream) {
		if err != nil {
			return err
		}
		fmt.Print(chunk.Text())
	}
*/
package llm
