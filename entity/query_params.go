package entity

// QueryParams 定义通用的查询参数
type QueryParams struct {
	Page     int    `form:"page"`      // 页码
	PageSize int    `form:"page_size"` // 每页数量
	Keyword  string `form:"keyword"`   // 搜索关键字 (模糊匹配名称等)

	// experiments 表过滤字段
	DatasetName string `form:"dataset_name"`
	ModelName   string `form:"model_name"`
	Profile     string `form:"profile"`
	Status      string `form:"status"`
}

// GetOffset 计算数据库偏移量
func (p *QueryParams) GetOffset() int {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	return (p.Page - 1) * p.PageSize
}

// GetLimit 获取限制条数
func (p *QueryParams) GetLimit() int {
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	return p.PageSize
}

// PageResult 通用的分页返回结构
type PageResult struct {
	Total int64       `json:"total"` // 总条数
	List  interface{} `json:"list"`  // 数据列表
}
