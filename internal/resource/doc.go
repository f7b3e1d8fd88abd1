// Package resource 聚合博客 API 中各类资源（posts/comments/users）的查询缓存策略，
// 并提供统一的注册入口。
//
// 新资源需要：
//  1. 在 init() 中通过 MustRegister 注册元数据与默认 Policy；
//  2. 保证 Key 与查询键的第一个元素一致，便于按资源统计与覆盖配置。
//
// 配置层通过 Resolve 校验 [[Resource]] 覆盖项，查询层通过 ResolvePolicy 取得最终策略。
package resource
