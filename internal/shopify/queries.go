package shopify

import "fmt"

// PageSize は一覧クエリで取得する件数。ページングは行わない。
const PageSize = 10

// ProductsQuery は商品の先頭PageSize件のIDとタイトルを取得する。
var ProductsQuery = fmt.Sprintf(`{
  products(first: %d) {
    edges {
      node {
        id
        title
      }
    }
  }
}`, PageSize)

// OrdersQuery は注文の先頭PageSize件のIDを取得する。
var OrdersQuery = fmt.Sprintf(`{
  orders(first: %d) {
    edges {
      node {
        id
      }
    }
  }
}`, PageSize)

// createProductMutation は商品を1件作成する。
const createProductMutation = `mutation populateProduct($input: ProductInput!) {
  productCreate(input: $input) {
    product {
      id
    }
    userErrors {
      field
      message
    }
  }
}`
