package sqlinline

const QSelectQuoteForRender = `--sql 1b6e4d20-7f9c-4a58-b3d1-8e02c5a79f36
select id, tenant_id, service_type, summary, customer_notes, customer_name,
       customer_email, photo_urls, render_opt_in, render_status,
       render_image_url, render_error, render_prompt
from quotes
where id = $1::uuid and tenant_id = $2::uuid;
`

const QUpdateQuoteRenderState = `--sql 83c5f2d7-491a-4e6b-a0c8-6b3e9d14f7a2
update quotes
set render_status = $2::text,
    render_image_url = $3::text,
    render_error = $4::text,
    render_prompt = coalesce(nullif($5::text, ''), render_prompt),
    updated_at = now()
where id = $1::uuid;
`
